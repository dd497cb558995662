package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"footdata-service/logger"
	"footdata-service/services"
)

// handleSyncToday 触发今日数据同步（异步执行）
// POST /api/sync/today
func (s *Server) handleSyncToday(w http.ResponseWriter, r *http.Request) {
	go func() {
		completed, failed := s.queue.SyncTodaysData(context.Background())
		logger.Printf("[Web] 今日同步完成: %d 成功, %d 失败", completed, failed)
	}()

	writeJSON(w, map[string]interface{}{
		"status":  "started",
		"message": "today sync started",
	})
}

// handleSyncSmart 触发智能同步（按时间段选择同步范围）
// POST /api/sync/smart
func (s *Server) handleSyncSmart(w http.ResponseWriter, r *http.Request) {
	go func() {
		completed, failed := s.queue.SmartSync(context.Background())
		logger.Printf("[Web] 智能同步完成: %d 成功, %d 失败", completed, failed)
	}()

	writeJSON(w, map[string]interface{}{
		"status":  "started",
		"message": "smart sync started",
	})
}

// handleSyncHistorical 触发历史数据回填
// POST /api/sync/historical?days=30
func (s *Server) handleSyncHistorical(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	go func() {
		completed, failed := s.queue.SyncHistoricalData(context.Background(), days)
		logger.Printf("[Web] 历史同步完成: %d 成功, %d 失败", completed, failed)
	}()

	writeJSON(w, map[string]interface{}{
		"status":  "started",
		"message": "historical sync started",
	})
}

// handleForceSync 同步执行指定目标并等待结果
// POST /api/sync/force/{target}   target: today|yesterday|tomorrow|live
func (s *Server) handleForceSync(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["target"]

	completed, failed, err := s.queue.ForceSync(r.Context(), target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]interface{}{
		"target":    target,
		"completed": completed,
		"failed":    failed,
	})
}

// handleSyncStop 停止同步队列
// POST /api/sync/stop
func (s *Server) handleSyncStop(w http.ResponseWriter, r *http.Request) {
	s.queue.Stop()
	writeJSON(w, map[string]interface{}{"status": "stopped"})
}

// handleSyncRestart 重新启用同步队列
// POST /api/sync/restart
func (s *Server) handleSyncRestart(w http.ResponseWriter, r *http.Request) {
	s.queue.Restart()
	writeJSON(w, map[string]interface{}{"status": "running"})
}

// handleSyncClear 清空待执行任务
// POST /api/sync/clear
func (s *Server) handleSyncClear(w http.ResponseWriter, r *http.Request) {
	removed := s.queue.ClearQueue()
	writeJSON(w, map[string]interface{}{
		"status":  "cleared",
		"removed": removed,
	})
}

// handleSyncStats 队列统计
// GET /api/sync/stats
func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.queue.GetStats())
}

// handleSyncJobs 队列任务快照
// GET /api/sync/jobs
func (s *Server) handleSyncJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.queue.Jobs()
	writeJSON(w, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handlePopulateQuick 快速填充（近几天、高优先级联赛）
// POST /api/populate/quick
func (s *Server) handlePopulateQuick(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.populator.QuickPopulation(context.Background()); err != nil {
			logger.Errorf("[Web] ❌ 快速填充失败: %v", err)
		}
	}()

	writeJSON(w, map[string]interface{}{
		"status":  "started",
		"message": "quick population started",
	})
}

// handlePopulateFull 完整填充（全部联赛层级）
// POST /api/populate/full
func (s *Server) handlePopulateFull(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.populator.FullPopulation(context.Background()); err != nil {
			logger.Errorf("[Web] ❌ 完整填充失败: %v", err)
		}
	}()

	writeJSON(w, map[string]interface{}{
		"status":  "started",
		"message": "full population started",
	})
}

// handlePopulateStart 自定义参数启动填充
// POST /api/populate/start  body: PopulationConfig JSON（可省略字段走默认值）
func (s *Server) handlePopulateStart(w http.ResponseWriter, r *http.Request) {
	var cfg services.PopulationConfig
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && err.Error() != "EOF" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	go func() {
		if err := s.populator.StartMassivePopulation(context.Background(), cfg); err != nil {
			logger.Errorf("[Web] ❌ 批量填充失败: %v", err)
		}
	}()

	writeJSON(w, map[string]interface{}{
		"status":  "started",
		"message": "population started",
	})
}

// handlePopulateStop 停止填充
// POST /api/populate/stop
func (s *Server) handlePopulateStop(w http.ResponseWriter, r *http.Request) {
	s.populator.Stop()
	writeJSON(w, map[string]interface{}{"status": "stopping"})
}

// handlePopulateStats 填充进度
// GET /api/populate/stats
func (s *Server) handlePopulateStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.populator.GetStats())
}
