package request

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ParseCompanyID parses a positive int64 company ID from a query value.
func ParseCompanyID(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	companyID, err := strconv.ParseInt(value, 10, 64)
	if err != nil || companyID <= 0 {
		return 0, false
	}
	return companyID, true
}

// CompanyIDFromRequest reads the optional company_id query parameter. A
// missing or empty parameter yields 0 (the global view); anything that is not
// a positive integer is an error.
func CompanyIDFromRequest(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if raw == "" {
		return 0, nil
	}
	companyID, ok := ParseCompanyID(raw)
	if !ok {
		return 0, fmt.Errorf("invalid company_id %q", raw)
	}
	return companyID, nil
}
