package utils

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

// Debug gates messages logged with debugOnly set.
var Debug bool

// LogMessage handles both console output and file logging
func LogMessage(message string, debugOnly bool) {
	if debugOnly && !Debug {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	logEntry := fmt.Sprintf("%s | %s", timestamp, message)

	fmt.Println(logEntry)

	f, err := os.OpenFile("memtester.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open memtester.log: %v\n", err)
		return
	}
	defer f.Close()

	logger := log.New(f, "", 0)
	logger.Println(logEntry)
}

// FormatSize converts bytes to human-readable string (KB, MB, GB)
func FormatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	if size >= GB {
		return fmt.Sprintf("%.2fGB", float64(size)/float64(GB))
	}
	if size >= MB {
		return fmt.Sprintf("%.2fMB", float64(size)/float64(MB))
	}
	if size >= KB {
		return fmt.Sprintf("%.2fKB", float64(size)/float64(KB))
	}

	return fmt.Sprintf("%dB", size)
}

// ParseMemSize parses a memory amount with an optional B/K/M/G suffix.
// A bare number means megabytes.
func ParseMemSize(sizeStr string) (int64, error) {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	shift := uint(20)
	switch suffix := sizeStr[len(sizeStr)-1]; suffix {
	case 'B':
		shift = 0
		sizeStr = sizeStr[:len(sizeStr)-1]
	case 'K':
		shift = 10
		sizeStr = sizeStr[:len(sizeStr)-1]
	case 'M':
		shift = 20
		sizeStr = sizeStr[:len(sizeStr)-1]
	case 'G':
		shift = 30
		sizeStr = sizeStr[:len(sizeStr)-1]
	default:
		if suffix < '0' || suffix > '9' {
			return 0, fmt.Errorf("unknown size suffix %q", string(suffix))
		}
	}

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, fmt.Errorf("size must be positive, got %d", size)
	}
	if size > int64(1)<<(62-shift) {
		return 0, fmt.Errorf("size %s%c overflows", sizeStr, "BKMG"[shift/10])
	}

	return size << shift, nil
}

// NewRand creates a new random number generator with the given seed
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
