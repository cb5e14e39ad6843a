package logger

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// Fields ditulis sebagai pasangan key=value terurut di akhir baris log.
type Fields map[string]interface{}

var (
	InfoLogger  *log.Logger
	WarnLogger  *log.Logger
	ErrorLogger *log.Logger
)

func init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
}

func Info(msg string, fields ...Fields) {
	_ = InfoLogger.Output(2, msg+render(fields))
}

func Warn(msg string, fields ...Fields) {
	_ = WarnLogger.Output(2, msg+render(fields))
}

func Error(msg string, err error, fields ...Fields) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	_ = ErrorLogger.Output(2, msg+render(fields))
}

func render(fields []Fields) string {
	merged := Fields{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return ""
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, merged[k])
	}
	return b.String()
}
