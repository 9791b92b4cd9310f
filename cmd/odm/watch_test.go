package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alfredjeanlab/odm/internal/events"
)

type chanSubscriber struct {
	ch chan events.Message
}

func (s *chanSubscriber) Subscribe(string) (<-chan events.Message, func(), error) {
	return s.ch, func() {}, nil
}

func (s *chanSubscriber) Close() error { return nil }

func feed(msgs ...events.Message) *chanSubscriber {
	ch := make(chan events.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &chanSubscriber{ch: ch}
}

func TestWatchPrints(t *testing.T) {
	watchExec, jsonOutput = "", false
	var buf bytes.Buffer
	sub := feed(events.Message{Topic: events.TopicDocumentDeleted, Data: []byte(`{"key":"s:ada"}`)})
	if err := watch(context.Background(), &buf, sub); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, events.TopicDocumentDeleted) || !strings.Contains(got, `"s:ada"`) {
		t.Fatalf("output = %q", got)
	}
}

func TestWatchExec(t *testing.T) {
	watchExec, watchTimeout = `printf 'saw %s' "$ODM_KEY"`, 0
	t.Cleanup(func() { watchExec = "" })

	var buf bytes.Buffer
	sub := feed(events.Message{Topic: events.TopicDocumentSaved, Data: []byte(`{"key":"i:3","created":true}`)})
	if err := watch(context.Background(), &buf, sub); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "saw i:3") || !strings.Contains(got, "ok") {
		t.Fatalf("output = %q", got)
	}
}
