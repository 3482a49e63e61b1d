package id

import (
	"hash/fnv"
	"sync/atomic"
	"time"
)

const (
	// 位数分配常量
	timestampBits = 41 // 时间戳位数
	hashBits      = 10 // hash值位数
	sequenceBits  = 12 // 序列号位数

	// 位移常量
	hashShift      = sequenceBits
	timestampShift = hashBits + sequenceBits

	// 掩码常量
	sequenceMask  = (1 << sequenceBits) - 1
	hashMask      = (1 << hashBits) - 1
	timestampMask = (1 << timestampBits) - 1

	// 基准时间 - 2024年1月1日
	epochMillis = int64(1704067200000) // 2024-01-01 00:00:00 UTC in milliseconds
)

// Generator 雪花算法变种的ID生成器，hash 段取自业务键，
// 同一个用户同一个幂等键生成的ID落在同一个分段里
type Generator struct {
	sequence int64 // 序列号计数器，使用原子操作访问
}

// NewGenerator 创建一个新的ID生成器
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateID 根据用户ID和幂等键生成ID
func (g *Generator) GenerateID(userID, key string) int64 {
	timestamp := time.Now().UnixMilli() - epochMillis

	hashValue := keyHash(userID, key) % (1 << hashBits)

	// 使用原子操作安全地递增序列号
	sequence := (atomic.AddInt64(&g.sequence, 1) - 1) & sequenceMask

	return (timestamp&timestampMask)<<timestampShift | // 时间戳部分
		(hashValue&hashMask)<<hashShift | // hash值部分
		sequence // 序列号部分
}

func keyHash(userID, key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & (1<<63 - 1))
}

// ExtractTimestamp 从ID中提取时间戳
func ExtractTimestamp(id int64) time.Time {
	timestamp := (id >> timestampShift) & timestampMask
	return time.Unix(0, (timestamp+epochMillis)*int64(time.Millisecond))
}

// ExtractHashValue 从ID中提取hash值
func ExtractHashValue(id int64) int64 {
	return (id >> hashShift) & hashMask
}

// ExtractSequence 从ID中提取序列号部分
func ExtractSequence(id int64) int64 {
	return id & sequenceMask
}
