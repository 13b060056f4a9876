package app

import "context"

// Component 任何「可啟動 / 可關閉」的長生命週期元件，例如 HTTP server 與 session 回收。
//   - Run() 阻塞到元件停止為止；Shutdown 之後正常返回 nil。
//   - Shutdown(ctx) 要求優雅關閉，需尊重 ctx deadline/cancel，可被呼叫多次。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}
