package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Locker MySQL GET_LOCK 互斥锁，死执行扫描用它保证单实例运行
// 锁是会话级的，连接断开自动释放
type Locker struct {
	db       *sql.DB
	lockName string
	timeout  time.Duration
	logger   *zap.Logger
	locked   bool
}

func NewLocker(db *sql.DB, lockName string, timeout time.Duration, logger *zap.Logger) *Locker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locker{
		db:       db,
		lockName: lockName,
		timeout:  timeout,
		logger:   logger,
	}
}

// TryLock 尝试获取锁
// GET_LOCK 返回 1 成功、0 超时、NULL 出错
func (l *Locker) TryLock(ctx context.Context) (bool, error) {
	if l.locked {
		return true, nil
	}

	timeoutSeconds := int(l.timeout.Seconds())
	var result sql.NullInt64
	err := l.db.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", l.lockName, timeoutSeconds).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !result.Valid {
		return false, fmt.Errorf("lock query returned NULL")
	}

	if result.Int64 == 1 {
		l.locked = true
		l.logger.Debug("acquired sweep lock", zap.String("lock_name", l.lockName))
		return true, nil
	}
	return false, nil
}

// Unlock 释放锁
func (l *Locker) Unlock(ctx context.Context) error {
	if !l.locked {
		return nil
	}

	var result sql.NullInt64
	err := l.db.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.lockName).Scan(&result)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if !result.Valid {
		return fmt.Errorf("release lock query returned NULL")
	}
	if result.Int64 != 1 {
		return fmt.Errorf("failed to release lock: not owner or lock does not exist")
	}

	l.locked = false
	l.logger.Debug("released sweep lock", zap.String("lock_name", l.lockName))
	return nil
}

// IsLocked 检查是否持有锁
func (l *Locker) IsLocked() bool {
	return l.locked
}
