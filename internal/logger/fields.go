package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the evaluator provider name.
	FieldProvider = "evaluator_provider"
	// FieldModel is the structured log field key for the evaluator model identifier.
	FieldModel = "evaluator_model"
	// FieldSession is the structured log field key for the interview session id.
	FieldSession = "session_id"
	// FieldCompany is the structured log field key for the respondent's company.
	FieldCompany = "company"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// EvaluatorFields returns standard zap fields that describe the evaluator
// provider and model. Empty values are ignored.
func EvaluatorFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithEvaluator attaches the evaluator fields to the provided logger.
func WithEvaluator(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, EvaluatorFields(provider, model)...)
}

// WithSession attaches the session id to the provided logger.
func WithSession(logger *zap.Logger, sessionID string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldSession, Value: sessionID})...)
}
