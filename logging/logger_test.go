package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestCustomFormatterFields(t *testing.T) {
	f := &CustomFormatter{SystemName: "collabspace"}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "Event ID: TEST, Description: hello",
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	line := string(out)

	for _, want := range []string{
		"Date: 2024-03-09, Time: 14:05:07, ",
		"Event Source: collabspace, ",
		"Event Type: WARNING, ",
		"Message: Event ID: TEST, Description: hello",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("formatted line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("formatted line must end with a newline")
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if err := InitLogger(Options{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestInitLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "collabspace.log")
	if err := InitLogger(Options{SystemName: "test", Level: "debug", File: path}); err != nil {
		t.Fatalf("InitLogger: %v", err)
	}
	t.Cleanup(func() {
		Logger.SetOutput(os.Stderr)
		Logger.SetLevel(logrus.InfoLevel)
	})

	Logger.Debug("Event ID: FILE_TEST, Description: written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte("FILE_TEST")) {
		t.Errorf("log file does not contain the message: %s", data)
	}
}
