package netsvr

import (
	"net/http"

	"github.com/zintix-labs/blocklab/server/app"
)

// NetSvr 封裝「路由行為 + 服務啟停」的抽象介面。
//   - 只暴露給最外層組裝使用，其他層只需面向 NetRouter。
//   - 目前實作基於標準庫 net/http + chi 輕量路由；換框架時只要提供相容 net/http handler 的實作。
//   - NetSvr 同時是 app.Component，可直接交給 app.App 管理生命週期。
//   - 實作 http.Handler，測試可直接搭配 httptest 使用而不需監聽 port。
type NetSvr interface {
	NetRouter
	app.Component
	http.Handler
}

// NetRouter 定義純路由行為，讓子模組只操作路由而不持有啟停控制權。
// Group 回呼只會拿到 NetRouter，看不到 Run/Shutdown。
type NetRouter interface {
	// middleware
	Use(middleware func(http.Handler) http.Handler)

	// 註冊路由
	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Put(path string, h http.HandlerFunc)
	Delete(path string, h http.HandlerFunc)

	// Handle 掛載任意 http.Handler（例如 promhttp），不限方法
	Handle(path string, h http.Handler)

	// 群組路由
	Group(path string, fn func(NetRouter))
}
