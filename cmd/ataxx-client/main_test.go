package main

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// run must hand back the exit code so deferred store and logger cleanup runs.
func TestRunReturnsCodeOnRejectedRegistration(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadString('\n')
		_, _ = conn.Write([]byte(`{"type":"register_nack","reason":"name taken"}` + "\n"))
		_, _ = bufio.NewReader(conn).ReadString('\n')
	}()

	logPath := filepath.Join(t.TempDir(), "client.log")
	for k, v := range map[string]string{
		"SERVER_ADDR": ln.Addr().String(), "PLAYER_NAME": "alice", "DISPLAY_MODE": "none",
		"REDIS_URL": "", "DATABASE_URL": "", "RESULT_WEBHOOK_URL": "", "MESSAGES_DIR": "", "POLICY_FILE": "",
		"LOG_TO_CONSOLE": "false", "LOG_TO_FILE": "true", "LOG_FILE": logPath, "LOG_FORMAT": "json",
	} {
		t.Setenv(k, v)
	}
	oldArgs := os.Args
	os.Args = []string{"ataxx-client"}
	defer func() { os.Args = oldArgs }()

	if code := run(); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "register_rejected") {
		t.Fatalf("rejection not flushed to the log: %s", data)
	}
}
