// Package criteria implements List filters shared by the dao stores.
package criteria

import (
	"github.com/viant/atomq/service/dao"
)

// StatusParameter is the parameter name used to filter by bean status
const StatusParameter = "Status"

// FilterByStatus returns true if status matches the status parameter or no status parameter was supplied
func FilterByStatus(status string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != StatusParameter {
			continue
		}
		if !parameter.Matches(status) {
			return false
		}
	}
	return true
}
