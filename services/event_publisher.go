package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"footdata-service/logger"
	"footdata-service/models"
)

// MatchEventPublisher 比赛更新事件发布器
// 比分或状态变化时向 fanout 交换机发布一条 JSON 事件，
// 供下游消费者（通知、推送等）订阅；未配置时为空操作
type MatchEventPublisher struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewMatchEventPublisher 创建事件发布器
func NewMatchEventPublisher(url, exchange string) *MatchEventPublisher {
	return &MatchEventPublisher{
		url:      url,
		exchange: exchange,
	}
}

// Connect 建立 AMQP 连接并声明交换机
func (p *MatchEventPublisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		p.exchange, // name
		"fanout",   // kind
		true,       // durable
		false,      // auto-delete
		false,      // internal
		false,      // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = channel
	logger.Printf("[Publisher] ✅ Connected to AMQP, exchange: %s", p.exchange)
	return nil
}

// Close 关闭连接
func (p *MatchEventPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// matchUpdateEvent 发布到交换机的事件体
type matchUpdateEvent struct {
	Type      string    `json:"type"`
	MatchID   int64     `json:"matchId"`
	LeagueID  int       `json:"leagueId"`
	Status    string    `json:"status"`
	HomeTeam  string    `json:"homeTeam"`
	AwayTeam  string    `json:"awayTeam"`
	HomeGoals *int      `json:"homeGoals"`
	AwayGoals *int      `json:"awayGoals"`
	Timestamp time.Time `json:"timestamp"`
}

// NotifyMatchUpdate 实现 MatchNotifier
func (p *MatchEventPublisher) NotifyMatchUpdate(match models.Match) {
	p.mu.Lock()
	channel := p.channel
	p.mu.Unlock()

	if channel == nil {
		return
	}

	event := matchUpdateEvent{
		Type:      "match_update",
		MatchID:   match.ID,
		LeagueID:  match.LeagueID,
		Status:    match.Status.Short,
		HomeTeam:  match.HomeTeam.Name,
		AwayTeam:  match.AwayTeam.Name,
		HomeGoals: match.Goals.Home,
		AwayGoals: match.Goals.Away,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("[Publisher] ❌ Failed to marshal event for match %d: %v", match.ID, err)
		return
	}

	err = channel.Publish(
		p.exchange, // exchange
		"",         // routing key (fanout)
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		logger.Errorf("[Publisher] ❌ Failed to publish event for match %d: %v", match.ID, err)
	}
}
