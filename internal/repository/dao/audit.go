package dao

import (
	"context"
	"time"

	"github.com/ego-component/egorm"
	"gorm.io/gorm/clause"
)

// DeliveryAttempt 投递尝试流水表
type DeliveryAttempt struct {
	ID             int64  `gorm:"primaryKey;comment:'雪花算法ID'"`
	NotificationID string `gorm:"type:VARCHAR(64);NOT NULL;index:idx_notification_id;comment:'通知ID'"`
	IdempotencyKey string `gorm:"type:VARCHAR(256);NOT NULL;comment:'幂等键'"`
	UserID         string `gorm:"type:VARCHAR(64);NOT NULL;comment:'目标用户ID'"`
	Platform       string `gorm:"type:ENUM('android','ios','web');NOT NULL;comment:'推送平台'"`
	Attempt        int32  `gorm:"type:INT;NOT NULL;comment:'第几次尝试，从0开始'"`
	Class          string `gorm:"type:ENUM('SUCCESS','RETRYABLE','PERMANENT');NOT NULL;comment:'本次调用结果分类'"`
	TokenTotal     int    `gorm:"type:INT;NOT NULL;comment:'本次发送的token数量'"`
	TokenSucceeded int    `gorm:"type:INT;NOT NULL;comment:'成功的token数量'"`
	LatencyMillis  int64  `gorm:"type:BIGINT;NOT NULL;comment:'网关调用耗时毫秒'"`
	Reason         string `gorm:"type:VARCHAR(512);comment:'失败原因'"`
	Ctime          int64  `gorm:"index:idx_ctime;comment:'写入时间毫秒'"`
}

func (DeliveryAttempt) TableName() string {
	return "delivery_attempts"
}

// DeadLetter 死信表，一条消息只会写入一次
type DeadLetter struct {
	ID             int64  `gorm:"primaryKey;comment:'雪花算法ID'"`
	NotificationID string `gorm:"type:VARCHAR(64);NOT NULL;comment:'通知ID'"`
	IdempotencyKey string `gorm:"type:VARCHAR(256);NOT NULL;uniqueIndex:idx_idempotency_key;comment:'幂等键，一条消息至多一条死信'"`
	Message        string `gorm:"type:TEXT;NOT NULL;comment:'消息快照，JSON'"`
	Reason         string `gorm:"type:VARCHAR(512);NOT NULL;comment:'进入死信的原因'"`
	FailureHistory string `gorm:"type:TEXT;comment:'历次失败记录，JSON数组'"`
	Ctime          int64  `gorm:"index:idx_ctime;comment:'写入时间毫秒'"`
}

func (DeadLetter) TableName() string {
	return "dead_letters"
}

type AuditDAO interface {
	CreateAttempt(ctx context.Context, attempt DeliveryAttempt) error
	CreateDeadLetter(ctx context.Context, entry DeadLetter) error
	// PurgeAttemptsBefore 删除指定时间之前的流水，返回删除行数
	PurgeAttemptsBefore(ctx context.Context, before time.Time, limit int) (int64, error)
	FindDeadLetters(ctx context.Context, offset, limit int) ([]DeadLetter, error)
}

type auditDAO struct {
	db *egorm.Component
}

// NewAuditDAO 创建审计DAO实例
func NewAuditDAO(db *egorm.Component) AuditDAO {
	return &auditDAO{db: db}
}

func (d *auditDAO) CreateAttempt(ctx context.Context, attempt DeliveryAttempt) error {
	attempt.Ctime = time.Now().UnixMilli()
	return d.db.WithContext(ctx).Create(&attempt).Error
}

func (d *auditDAO) CreateDeadLetter(ctx context.Context, entry DeadLetter) error {
	entry.Ctime = time.Now().UnixMilli()
	// 消息重投场景下同一条死信可能写入多次，撞上幂等键冲突时直接忽略
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(&entry).Error
}

func (d *auditDAO) PurgeAttemptsBefore(ctx context.Context, before time.Time, limit int) (int64, error) {
	res := d.db.WithContext(ctx).
		Where("ctime < ?", before.UnixMilli()).
		Limit(limit).
		Delete(&DeliveryAttempt{})
	return res.RowsAffected, res.Error
}

func (d *auditDAO) FindDeadLetters(ctx context.Context, offset, limit int) ([]DeadLetter, error) {
	var entries []DeadLetter
	err := d.db.WithContext(ctx).
		Order("ctime DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
