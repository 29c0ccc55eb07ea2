package errors

import "fmt"

// Code is a native protocol error code.
type Code int

// Server-side and request-execution errors
const (
	ServerError     Code = 0x0000
	ProtocolError   Code = 0x000A
	Unavailable     Code = 0x1000
	Overloaded      Code = 0x1001
	IsBootstrapping Code = 0x1002
	ReadTimeout     Code = 0x1200
	ReadFailure     Code = 0x1300
	FunctionFailure Code = 0x1400
)

// Request validation errors
const (
	SyntaxError   Code = 0x2000
	Unauthorized  Code = 0x2100
	Invalid       Code = 0x2200
	ConfigError   Code = 0x2300
	AlreadyExists Code = 0x2400
	Unprepared    Code = 0x2500
)

var codeNames = map[Code]string{
	ServerError:     "server_error",
	ProtocolError:   "protocol_error",
	Unavailable:     "unavailable",
	Overloaded:      "overloaded",
	IsBootstrapping: "is_bootstrapping",
	ReadTimeout:     "read_timeout",
	ReadFailure:     "read_failure",
	FunctionFailure: "function_failure",
	SyntaxError:     "syntax_error",
	Unauthorized:    "unauthorized",
	Invalid:         "invalid",
	ConfigError:     "config_error",
	AlreadyExists:   "already_exists",
	Unprepared:      "unprepared",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_0x%04X", int(c))
}

// Class groups errors by the stage that detected them.
type Class int

const (
	// ClassUnknown is used for errors created outside the query core.
	ClassUnknown Class = iota
	// ClassCompile errors are detected while preparing a statement. The
	// statement is rejected and never cached.
	ClassCompile
	// ClassBind errors are detected when bound values are applied to a
	// prepared statement. The statement stays valid.
	ClassBind
	// ClassExecution errors come from the storage collaborator.
	ClassExecution
)

func (c Class) String() string {
	switch c {
	case ClassCompile:
		return "compile"
	case ClassBind:
		return "bind"
	case ClassExecution:
		return "execution"
	default:
		return "unknown"
	}
}
