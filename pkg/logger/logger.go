package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antibyte/webdesk/pkg/configuration"
)

// LogLevel orders messages by severity.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var logLevelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// LogArea tags a message with the subsystem that wrote it. Each area can be
// switched on or off in the [Debug] section.
type LogArea string

const (
	AreaWebSocket  LogArea = "websocket"
	AreaDesktop    LogArea = "desktop"
	AreaWindow     LogArea = "window"
	AreaShell      LogArea = "shell"
	AreaSession    LogArea = "session"
	AreaFileSystem LogArea = "filesystem"
	AreaBrowser    LogArea = "browser"
	AreaAuth       LogArea = "auth"
	AreaSecurity   LogArea = "security"
	AreaConfig     LogArea = "config"
	AreaGeneral    LogArea = "general"
	AreaMetrics    LogArea = "metrics"
)

// allAreas lists every area in a stable order.
var allAreas = []LogArea{
	AreaWebSocket, AreaDesktop, AreaWindow, AreaShell, AreaSession,
	AreaFileSystem, AreaBrowser, AreaAuth, AreaSecurity, AreaConfig,
	AreaGeneral, AreaMetrics,
}

// Logger writes formatted lines to the debug log file and rotates it.
type Logger struct {
	enabled       int32              // atomic bool - performance critical
	level         int32              // atomic LogLevel
	areaEnabled   map[LogArea]*int32 // atomic bools per area
	file          *os.File
	mu            sync.Mutex
	logPath       string
	maxSizeMB     int64
	rotationCount int
	currentSize   int64
}

var (
	globalLogger *Logger
	initOnce     sync.Once
)

// Initialize sets up the global logger from [Debug]. It must run after
// configuration.Initialize; later calls are no-ops.
func Initialize() error {
	var err error
	initOnce.Do(func() {
		globalLogger, err = newLogger()
	})
	return err
}

func newLogger() (*Logger, error) {
	l := &Logger{
		areaEnabled: make(map[LogArea]*int32),
	}
	for _, area := range allAreas {
		l.areaEnabled[area] = new(int32)
	}

	if err := l.loadConfig(); err != nil {
		return nil, err
	}

	if err := l.openLogFile(); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Logger) loadConfig() error {
	atomic.StoreInt32(&l.enabled, boolToInt32(configuration.GetBool("Debug", "enable_debug_logging", true)))
	atomic.StoreInt32(&l.level, int32(parseLogLevel(configuration.GetString("Debug", "log_level", "INFO"))))

	l.logPath = configuration.GetString("Debug", "log_file", "debug.log")
	l.maxSizeMB = int64(configuration.GetInt("Debug", "max_log_size_mb", 10))
	l.rotationCount = configuration.GetInt("Debug", "log_rotation_count", 3)

	// log_<area> = true enables one area.
	for area, flag := range l.areaEnabled {
		atomic.StoreInt32(flag, boolToInt32(configuration.GetBool("Debug", "log_"+string(area), false)))
	}
	return nil
}

// openLogFile (re)opens logPath for appending and records its size.
func (l *Logger) openLogFile() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	dir := filepath.Dir(l.logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	l.file = file

	if stat, err := file.Stat(); err == nil {
		l.currentSize = stat.Size()
	}

	return nil
}

// rotateLocked shifts log, log.1, ... up by one and starts a fresh file.
// The caller holds l.mu.
func (l *Logger) rotateLocked() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	for i := l.rotationCount - 1; i >= 1; i-- {
		oldName := fmt.Sprintf("%s.%d", l.logPath, i)
		newName := fmt.Sprintf("%s.%d", l.logPath, i+1)

		if i == l.rotationCount-1 {
			os.Remove(newName)
		}

		os.Rename(oldName, newName)
	}

	os.Rename(l.logPath, l.logPath+".1")

	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	l.file = file
	l.currentSize = 0

	return nil
}

func (l *Logger) isEnabled() bool {
	return atomic.LoadInt32(&l.enabled) != 0
}

func (l *Logger) isAreaEnabled(area LogArea) bool {
	if flag, exists := l.areaEnabled[area]; exists {
		return atomic.LoadInt32(flag) != 0
	}
	return false
}

// shouldLog is called on every log statement, so it only touches atomics.
func (l *Logger) shouldLog(level LogLevel, area LogArea) bool {
	if !l.isEnabled() {
		return false
	}

	if atomic.LoadInt32(&l.level) > int32(level) {
		return false
	}

	return l.isAreaEnabled(area)
}

// writeLog formats one line as
//
//	[timestamp] LEVEL [file:line] [AREA] message
func (l *Logger) writeLog(level LogLevel, area LogArea, format string, args ...any) {
	message := fmt.Sprintf(format, args...)

	// Skip writeLog, the level function and its area wrapper.
	_, file, line, _ := runtime.Caller(3)
	filename := filepath.Base(file)

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	entry := fmt.Sprintf("[%s] %s [%s:%d] [%s] %s\n",
		timestamp,
		logLevelNames[level],
		filename,
		line,
		strings.ToUpper(string(area)),
		message)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		n, err := l.file.WriteString(entry)
		if err == nil {
			l.currentSize += int64(n)
			l.file.Sync()

			if l.currentSize > l.maxSizeMB*1024*1024 {
				if err := l.rotateLocked(); err != nil {
					log.Printf("[ERROR] [GENERAL] log rotation failed: %v", err)
				}
			}
		}
	}

	// Warnings and errors also reach stderr.
	if level >= WARN {
		log.Printf("[%s] [%s] %s", logLevelNames[level], strings.ToUpper(string(area)), message)
	}
}

func Debug(area LogArea, format string, args ...any) {
	if globalLogger != nil && globalLogger.shouldLog(DEBUG, area) {
		globalLogger.writeLog(DEBUG, area, format, args...)
	}
}

func Info(area LogArea, format string, args ...any) {
	if globalLogger != nil && globalLogger.shouldLog(INFO, area) {
		globalLogger.writeLog(INFO, area, format, args...)
	}
}

func Warn(area LogArea, format string, args ...any) {
	if globalLogger != nil && globalLogger.shouldLog(WARN, area) {
		globalLogger.writeLog(WARN, area, format, args...)
	}
}

func Error(area LogArea, format string, args ...any) {
	if globalLogger != nil && globalLogger.shouldLog(ERROR, area) {
		globalLogger.writeLog(ERROR, area, format, args...)
	}
}

// Fatal logs regardless of area and exits.
func Fatal(area LogArea, format string, args ...any) {
	if globalLogger != nil {
		globalLogger.writeLog(FATAL, area, format, args...)
	}
	log.Fatalf("[FATAL] [%s] %s", strings.ToUpper(string(area)), fmt.Sprintf(format, args...))
}

// Area shorthands.

func WebSocketDebug(format string, args ...any) { Debug(AreaWebSocket, format, args...) }
func WebSocketInfo(format string, args ...any)  { Info(AreaWebSocket, format, args...) }
func WebSocketWarn(format string, args ...any)  { Warn(AreaWebSocket, format, args...) }
func WebSocketError(format string, args ...any) { Error(AreaWebSocket, format, args...) }

func AuthDebug(format string, args ...any) { Debug(AreaAuth, format, args...) }
func AuthInfo(format string, args ...any)  { Info(AreaAuth, format, args...) }
func AuthWarn(format string, args ...any)  { Warn(AreaAuth, format, args...) }
func AuthError(format string, args ...any) { Error(AreaAuth, format, args...) }

func SecurityInfo(format string, args ...any)  { Info(AreaSecurity, format, args...) }
func SecurityWarn(format string, args ...any)  { Warn(AreaSecurity, format, args...) }
func SecurityError(format string, args ...any) { Error(AreaSecurity, format, args...) }

func DesktopDebug(format string, args ...any) { Debug(AreaDesktop, format, args...) }
func DesktopInfo(format string, args ...any)  { Info(AreaDesktop, format, args...) }
func DesktopWarn(format string, args ...any)  { Warn(AreaDesktop, format, args...) }

func ConfigInfo(format string, args ...any) { Info(AreaConfig, format, args...) }
func ConfigWarn(format string, args ...any) { Warn(AreaConfig, format, args...) }

// ReloadConfig re-reads [Debug] without reopening the file.
func ReloadConfig() error {
	if globalLogger != nil {
		return globalLogger.loadConfig()
	}
	return fmt.Errorf("logger not initialized")
}

func EnableArea(area LogArea) {
	if globalLogger != nil {
		if flag, exists := globalLogger.areaEnabled[area]; exists {
			atomic.StoreInt32(flag, 1)
		}
	}
}

func DisableArea(area LogArea) {
	if globalLogger != nil {
		if flag, exists := globalLogger.areaEnabled[area]; exists {
			atomic.StoreInt32(flag, 0)
		}
	}
}

func GetAreaStatus(area LogArea) bool {
	if globalLogger != nil {
		return globalLogger.isAreaEnabled(area)
	}
	return false
}

// ListAreas returns a copy of the known areas.
func ListAreas() []LogArea {
	out := make([]LogArea, len(allAreas))
	copy(out, allAreas)
	return out
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// String returns the level name used in log lines.
func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// areaWriter adapts an area/level pair to io.Writer.
type areaWriter struct {
	area  LogArea
	level LogLevel
}

func (w areaWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if globalLogger != nil && globalLogger.shouldLog(w.level, w.area) {
		globalLogger.writeLog(w.level, w.area, "%s", msg)
	}
	return len(p), nil
}

// StdLogger returns a *log.Logger that forwards into the given area, for
// libraries that only accept the standard logger (http.Server.ErrorLog).
func StdLogger(area LogArea, level LogLevel) *log.Logger {
	return log.New(areaWriter{area: area, level: level}, "", 0)
}

// Close closes the log file. Later messages are dropped.
func Close() {
	if globalLogger != nil {
		globalLogger.mu.Lock()
		defer globalLogger.mu.Unlock()

		if globalLogger.file != nil {
			globalLogger.file.Close()
			globalLogger.file = nil
		}
	}
}
