// Package schema loads the QMI service and qmi_error name tables from
// embedded hjson resources, the same hjson/name.CamelCase pipeline a QMI
// codegen tool uses to produce Go identifiers from the published service
// and error tables — except here the tables are read once at process
// start instead of emitted as source.
package schema

import (
	_ "embed"
	"fmt"

	"github.com/hjson/hjson-go"
	"github.com/pascaldekloe/name"
)

//go:embed services.hjson
var servicesHjson []byte

//go:embed qmi_errors.hjson
var qmiErrorsHjson []byte

type serviceEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type servicesDoc struct {
	Services []serviceEntry `json:"services"`
}

type errorEntry struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type errorsDoc struct {
	Errors []errorEntry `json:"errors"`
}

var (
	serviceNames map[uint8]string
	serviceLabel map[uint8]string
	errorNames   map[uint16]string
	errorLabel   map[uint16]string
)

func init() {
	var svc servicesDoc
	if err := hjson.Unmarshal(servicesHjson, &svc); err != nil {
		panic(fmt.Sprintf("schema: malformed services.hjson: %v", err))
	}
	serviceNames = make(map[uint8]string, len(svc.Services))
	serviceLabel = make(map[uint8]string, len(svc.Services))
	for _, e := range svc.Services {
		id := uint8(e.ID)
		serviceNames[id] = e.Name
		serviceLabel[id] = name.CamelCase(e.Name, true)
	}

	var errs errorsDoc
	if err := hjson.Unmarshal(qmiErrorsHjson, &errs); err != nil {
		panic(fmt.Sprintf("schema: malformed qmi_errors.hjson: %v", err))
	}
	errorNames = make(map[uint16]string, len(errs.Errors))
	errorLabel = make(map[uint16]string, len(errs.Errors))
	for _, e := range errs.Errors {
		code := uint16(e.Code)
		errorNames[code] = e.Name
		errorLabel[code] = name.CamelCase(e.Name, true)
	}
}

// ServiceName returns the lower_snake_case service name for id (e.g.
// "uim"), or "" if id is not in the table.
func ServiceName(id uint8) string {
	return serviceNames[id]
}

// ServiceLabel returns the CamelCase exported-identifier form of a service
// name (e.g. "Uim"), suitable for log lines and generated code alike.
func ServiceLabel(id uint8) string {
	return serviceLabel[id]
}

// ErrorSymbol returns the lower_snake_case qmi_error name for code (e.g.
// "no_memory"), or "" if code is not in the table.
func ErrorSymbol(code uint16) string {
	return errorNames[code]
}

// ErrorLabel returns the CamelCase exported-identifier form of a qmi_error
// name (e.g. "NoMemory").
func ErrorLabel(code uint16) string {
	return errorLabel[code]
}
