// Package logging provides a chainable builder for structured log fields,
// consumed as logrus.Fields at the call site.
package logging

import "github.com/sirupsen/logrus"

// Fields is a chainable map of structured logging key/value pairs.
type Fields map[string]interface{}

func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, resourceName string) Fields {
	f["resource_type"] = resourceType
	if resourceName != "" {
		f["resource_name"] = resourceName
	}
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) ToLogrus() logrus.Fields {
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		lf[k] = v
	}
	return lf
}

// PipelineFields is the standard field set for pipeline-orchestrator log
// lines: every stage/provider log line anchors on snapshot_id.
func PipelineFields(operation, snapshotID string) Fields {
	return NewFields().Component("pipeline").Operation(operation).Resource("snapshot", snapshotID)
}
