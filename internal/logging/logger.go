package logging

import (
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// sensitivePatterns match "key: value" style secrets. Group 1 is the key,
// group 2 the value to mask.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?key|secret[_-]?key)["\s:=]+([a-zA-Z0-9/+]{20,})`),
	regexp.MustCompile(`(?i)(token|bearer)["\s:=]+([a-zA-Z0-9_\-\.]{20,})`),
	regexp.MustCompile(`(?i)(password|passwd|pwd)["\s:=]+([^\s"']{6,})`),
	regexp.MustCompile(`(?i)(secret)["\s:_=]+([a-zA-Z0-9_]{12,})`),
}

// botTokenPattern matches a Telegram bot token wherever it appears,
// including inside https://api.telegram.org/bot<token>/sendMessage URLs
// that net/http embeds in transport errors. Group 1 is the bot id.
var botTokenPattern = regexp.MustCompile(`(\d{5,15}):[A-Za-z0-9_-]{30,}`)

// SetupLogger builds a logrus logger for the given level and format
// ("json" or "text").
func SetupLogger(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)
	logger.SetReportCaller(true)

	return logger, nil
}

// RedactSensitiveData masks secrets found in data, keeping the first and
// last four characters of long values.
func RedactSensitiveData(data string) string {
	result := botTokenPattern.ReplaceAllString(data, "$1:****")

	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			parts := pattern.FindStringSubmatch(match)
			if len(parts) >= 3 {
				return parts[1] + "=" + maskValue(parts[2])
			}
			return "****"
		})
	}

	return result
}

func maskValue(value string) string {
	if len(value) > 8 {
		return value[:4] + "****" + value[len(value)-4:]
	}
	return "****"
}

// SensitiveHook redacts secrets from every entry before it is written.
type SensitiveHook struct{}

func (hook *SensitiveHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *SensitiveHook) Fire(entry *logrus.Entry) error {
	entry.Message = RedactSensitiveData(entry.Message)

	for key, value := range entry.Data {
		var str string
		switch v := value.(type) {
		case string:
			str = v
		case error:
			// transport errors carry the request URL, and with it the bot token
			str = v.Error()
		default:
			continue
		}

		if isSensitiveField(key) && len(str) >= 20 {
			entry.Data[key] = maskValue(str)
		} else {
			entry.Data[key] = RedactSensitiveData(str)
		}
	}

	return nil
}

func isSensitiveField(fieldName string) bool {
	sensitiveFields := []string{
		"api_key", "apikey", "access_key", "accesskey",
		"secret_key", "secretkey", "secret", "password",
		"passwd", "pwd", "token", "bearer", "authorization",
	}

	lowerField := strings.ToLower(fieldName)
	for _, sf := range sensitiveFields {
		if strings.Contains(lowerField, sf) {
			return true
		}
	}
	return false
}

// AddGlobalFields returns an entry tagged with the service name and version.
func AddGlobalFields(logger *logrus.Logger, serviceName, version string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"service": serviceName,
		"version": version,
	})
}

func WithRequestID(logger *logrus.Entry, requestID string) *logrus.Entry {
	return logger.WithField("request_id", requestID)
}

func WithOperation(logger *logrus.Entry, operation string) *logrus.Entry {
	return logger.WithField("operation", operation)
}

// SanitizeForLog flattens s onto one line and redacts secrets.
func SanitizeForLog(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")

	return RedactSensitiveData(s)
}
