package web

import (
	"sync"
	"testing"
)

func TestClientLeagueFilter(t *testing.T) {
	c := &Client{}
	update := &WSMessage{Type: "match_update", MatchID: 1, LeagueID: 39}

	// 未设置过滤器时接收所有消息
	if !c.shouldReceive(update) {
		t.Error("Expected unfiltered client to receive match updates")
	}

	c.handleMessage([]byte(`{"type":"subscribe","league_ids":[140]}`))
	if c.shouldReceive(update) {
		t.Error("Expected league 39 to be filtered out after subscribing to 140")
	}
	if !c.shouldReceive(&WSMessage{Type: "sync_progress"}) {
		t.Error("Expected non-match messages to bypass the filter")
	}

	c.handleMessage([]byte(`{"type":"subscribe","league_ids":[39,140]}`))
	if !c.shouldReceive(update) {
		t.Error("Expected league 39 to pass after subscribing to it")
	}

	c.handleMessage([]byte(`{"type":"unsubscribe"}`))
	if !c.shouldReceive(update) {
		t.Error("Expected all messages after unsubscribe")
	}
}

// 订阅更新发生在 readPump 协程，广播循环同时读取过滤器
func TestClientFilterConcurrentAccess(t *testing.T) {
	c := &Client{}
	update := &WSMessage{Type: "match_update", MatchID: 1, LeagueID: 39}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.handleMessage([]byte(`{"type":"subscribe","league_ids":[39,140]}`))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.shouldReceive(update)
		}
	}()
	wg.Wait()

	if !c.shouldReceive(update) {
		t.Error("Expected league 39 to pass the final filter")
	}
}
