package main

import (
	"errors"
	"testing"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCronLoggerReportsSkippedRunsThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cronLog := cronLogger{zap.New(core).Sugar()}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	job := cron.NewChain(cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(func() {
		close(started)
		<-release
	}))

	go func() {
		job.Run()
		close(done)
	}()
	<-started
	job.Run()
	close(release)
	<-done

	if logs.FilterMessage("skip").Len() != 1 {
		t.Fatalf("expected one skip entry, got %+v", logs.All())
	}
}

func TestCronLoggerErrorCarriesCause(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cronLog := cronLogger{zap.New(core).Sugar()}

	cronLog.Error(errors.New("boom"), "panic", "job", "sync")

	entries := logs.FilterMessage("panic").All()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("unexpected entries %+v", logs.All())
	}
	fields := entries[0].ContextMap()
	if fields["error"] != "boom" || fields["job"] != "sync" {
		t.Fatalf("unexpected fields %+v", fields)
	}
}
