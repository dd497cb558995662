package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"footdata-service/config"
	"footdata-service/services"
)

type Server struct {
	config     *config.Config
	sync       *services.Synchronizer
	queue      *services.SyncQueue
	populator  *services.BulkPopulator
	wsHub      *Hub
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func NewServer(cfg *config.Config, sync *services.Synchronizer, queue *services.SyncQueue, populator *services.BulkPopulator, hub *Hub) *Server {
	return &Server{
		config:    cfg,
		sync:      sync,
		queue:     queue,
		populator: populator,
		wsHub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源(生产环境需要限制)
			},
		},
	}
}

func (s *Server) Start() error {
	router := mux.NewRouter()

	// API路由
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// 数据查询
	api.HandleFunc("/fixtures", s.handleGetFixtures).Methods("GET")
	api.HandleFunc("/fixtures/multi", s.handleGetFixturesMulti).Methods("GET")
	api.HandleFunc("/standings", s.handleGetStandings).Methods("GET")
	api.HandleFunc("/leagues", s.handleGetLeagues).Methods("GET")
	api.HandleFunc("/teams", s.handleGetTeams).Methods("GET")
	api.HandleFunc("/teams/{team_id}/matches", s.handleGetTeamMatches).Methods("GET")

	// 同步队列控制
	api.HandleFunc("/sync/today", s.handleSyncToday).Methods("POST")
	api.HandleFunc("/sync/smart", s.handleSyncSmart).Methods("POST")
	api.HandleFunc("/sync/historical", s.handleSyncHistorical).Methods("POST")
	api.HandleFunc("/sync/force/{target}", s.handleForceSync).Methods("POST")
	api.HandleFunc("/sync/stop", s.handleSyncStop).Methods("POST")
	api.HandleFunc("/sync/restart", s.handleSyncRestart).Methods("POST")
	api.HandleFunc("/sync/clear", s.handleSyncClear).Methods("POST")
	api.HandleFunc("/sync/stats", s.handleSyncStats).Methods("GET")
	api.HandleFunc("/sync/jobs", s.handleSyncJobs).Methods("GET")

	// 批量填充控制
	api.HandleFunc("/populate/quick", s.handlePopulateQuick).Methods("POST")
	api.HandleFunc("/populate/full", s.handlePopulateFull).Methods("POST")
	api.HandleFunc("/populate/start", s.handlePopulateStart).Methods("POST")
	api.HandleFunc("/populate/stop", s.handlePopulateStop).Methods("POST")
	api.HandleFunc("/populate/stats", s.handlePopulateStats).Methods("GET")

	// WebSocket路由
	router.HandleFunc("/ws", s.handleWebSocket)

	// 静态文件(如果需要)
	router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static")))

	// CORS配置
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleWebSocket WebSocket连接处理
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:       s.wsHub,
		conn:      conn,
		send:      make(chan []byte, 256),
		leagueIDs: make(map[int]bool),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// writeJSON 输出JSON响应
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
