package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration      = errors.New("configuration error")
	ErrConnection         = errors.New("connection error")
	ErrQuery              = errors.New("query error")
	ErrUnexpectedRowShape = errors.New("unexpected row shape")
)

// ConfigurationError reports a required setting that was not provided.
// Variable is the environment variable the operator has to export.
type ConfigurationError struct {
	Variable    string
	Description string
}

func (e *ConfigurationError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("missing required environment variable %s", e.Variable)
	}
	return fmt.Sprintf("you need to set an env var for the %s. export %s=<your-%s>",
		e.Description, e.Variable, placeholder(e.Description))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError returns a ConfigurationError for a missing variable.
func NewConfigurationError(variable, description string) *ConfigurationError {
	return &ConfigurationError{Variable: variable, Description: description}
}

// ConnectionError reports a failed database or schema selection on a freshly
// opened session. Object is the kind ("database" or "schema"), Name the
// requested object and Container where it was expected to exist.
type ConnectionError struct {
	Object    string
	Name      string
	Container string
	Err       error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("could not connect to %s %s. Does the %s exist in %s?",
		e.Object, e.Name, e.Object, e.Container)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// NewDatabaseError wraps a failed database selection.
func NewDatabaseError(database, account string, err error) *ConnectionError {
	return &ConnectionError{Object: "database", Name: database, Container: account, Err: err}
}

// NewSchemaError wraps a failed schema selection.
func NewSchemaError(schema, database string, err error) *ConnectionError {
	container := "the " + database + " database"
	if database == "" {
		container = "the current database"
	}
	return &ConnectionError{Object: "schema", Name: schema, Container: container, Err: err}
}

// QueryError wraps a driver failure while executing an arbitrary query.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}

func placeholder(description string) string {
	out := make([]rune, 0, len(description))
	for _, r := range description {
		if r == ' ' {
			r = '-'
		}
		out = append(out, r)
	}
	return string(out)
}
