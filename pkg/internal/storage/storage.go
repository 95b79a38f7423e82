// Package storage 聚合基础设施资源：数据库、键值缓存、消息队列与对象存储.
//
// Example:
//
// 初始化
//
//	ctx := context.Background()
//	mgr, err := storage.Init(ctx)
//
//	if err != nil {
//	    // 处理错误
//	}
//
// 获取存储客户端
//
//	store := mgr.GetBlob()
//	dbClient := mgr.GetDBClient()
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yeisme/photovault/pkg/configs"
	"github.com/yeisme/photovault/pkg/internal/resilience"
	"github.com/yeisme/photovault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/photovault/pkg/internal/storage/db"
	kvc "github.com/yeisme/photovault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/photovault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/photovault/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB         *dbc.Client
	KV         *kvc.Client
	MQ         *mqc.Client
	Blob       *blob.Resilient
	Resilience *resilience.Registry
}

var (
	mgr     *Manager
	mgrOnce sync.Once
	mgrErr  error
)

// Init 初始化默认存储，使用全局配置.重复调用只返回已初始化实例.
func Init(ctx context.Context) (*Manager, error) {
	mgrOnce.Do(func() {
		mgr, mgrErr = New(ctx, configs.GetConfig())
		if mgrErr == nil {
			nlog.Logger().Info().Msg("storage manager initialized")
		}
	})

	return mgr, mgrErr
}

// New 按配置创建 Manager，不影响全局实例.
// 只有事件通道选择 mq 时才连接消息队列.
func New(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	m := &Manager{Resilience: resilience.NewRegistry(cfg.Resilience)}

	dbi, err := dbc.New(ctx, &cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	m.DB = dbi

	kvi, err := kvc.NewKVClient(ctx, &cfg.KV)
	if err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init kv: %w", err)
	}

	m.KV = kvi

	if cfg.Events.Enabled && cfg.Events.Provider == configs.EventProviderMQ {
		mqi, err := mqc.New(ctx, &cfg.MQ)
		if err != nil {
			_ = m.Close()

			return nil, fmt.Errorf("init mq: %w", err)
		}

		m.MQ = mqi
	}

	raw, err := blob.New(ctx, cfg.Storage.Provider, &cfg.Storage)
	if err != nil {
		_ = m.Close()

		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	m.Blob = blob.NewResilient(raw, m.Resilience)

	return m, nil
}

// GetBlob 获取带熔断重试的对象存储.
func (m *Manager) GetBlob() blob.Storage {
	if m.Blob == nil {
		return nil
	}

	return m.Blob
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetMQClient 获取 MQ 客户端，未启用时返回 nil.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// GetResilience 获取熔断器注册表.
func (m *Manager) GetResilience() *resilience.Registry {
	return m.Resilience
}

// Close 释放全部连接.
func (m *Manager) Close() error {
	var errList []error

	if m.MQ != nil {
		if err := m.MQ.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close mq: %w", err))
		}
	}

	if m.KV != nil {
		if err := m.KV.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close kv: %w", err))
		}
	}

	if m.DB != nil {
		if err := m.DB.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close db: %w", err))
		}
	}

	return errors.Join(errList...)
}
