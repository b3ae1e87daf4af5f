package shutdown

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"marketsync/pkg/logger"
)

type exitRequest struct {
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	Cmd       string            `json:"cmd"`
	CrashPath string            `json:"crash_path,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Abort logs a fatal startup error, writes diagnostics near the DB path and
// exits after a short delay so logs and dumps have time to flush.
func Abort(contextMsg string, err error, dbPath string, delaySeconds ...int) {
	delay := 10
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	dumpPath, reqPath, derr := AbortWithDiagnostics(dbPath, contextMsg, err)
	if derr != nil {
		logger.Error("abort_with_diagnostics_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Info("wrote_crash_dump", "path", dumpPath, "request", reqPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(1 * time.Second)
	}
	os.Exit(2)
}

// AbortWithDiagnostics writes a goroutine dump and a machine-readable abort
// request that references it. Returns the two paths.
func AbortWithDiagnostics(dbPath, reason string, err error) (string, string, error) {
	crashDir := "./crash"
	abortDir := "./abort"
	if dbPath != "" {
		crashDir = filepath.Join(dbPath, "state", "crash")
		abortDir = filepath.Join(dbPath, "state", "abort")
	}
	if merr := os.MkdirAll(crashDir, 0o700); merr != nil {
		return "", "", merr
	}
	if merr := os.MkdirAll(abortDir, 0o700); merr != nil {
		return "", "", merr
	}

	now := time.Now().UTC()
	stamp := now.Format("20060102T150405Z")

	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	dumpPath := filepath.Join(crashDir, "crash-"+stamp+".txt")
	body := fmt.Sprintf("time: %s\nreason: %s\nerror: %v\n\n%s", now.Format(time.RFC3339), reason, err, buf[:n])
	if werr := os.WriteFile(dumpPath, []byte(body), 0o600); werr != nil {
		return "", "", werr
	}

	req := exitRequest{
		Time:      now.Format(time.RFC3339),
		Reason:    reason,
		Cmd:       os.Args[0],
		CrashPath: dumpPath,
	}
	if err != nil {
		req.Meta = map[string]string{"error": err.Error()}
	}
	rb, _ := json.MarshalIndent(req, "", "  ")
	reqPath := filepath.Join(abortDir, "abort-"+stamp+".json")
	if werr := os.WriteFile(reqPath, rb, 0o600); werr != nil {
		return dumpPath, "", werr
	}
	return dumpPath, reqPath, nil
}
