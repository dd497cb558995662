package services

import "errors"

var (
	// ErrMissingCredentials 既无缓存数据也未配置上游客户端
	ErrMissingCredentials = errors.New("missing upstream credentials")

	// ErrQueueStopped 队列已停止
	ErrQueueStopped = errors.New("queue stopped")

	// ErrQuotaExhausted 今日配额已达上限
	ErrQuotaExhausted = errors.New("daily quota exhausted")
)
