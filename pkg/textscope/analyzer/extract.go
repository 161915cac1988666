package analyzer

import (
	"strconv"
	"strings"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
)

// IDMarker is the substring that identifies the report line carrying the
// identifier assigned by the analyzer.
const IDMarker = "Text ID:"

// ExtractionError is returned when a report holds no parseable identifier.
// The report is kept so callers can show it.
type ExtractionError struct {
	Report string
}

func (e *ExtractionError) Error() string {
	return internalerr.ErrIdentifierExtraction.Error()
}

func (e *ExtractionError) Unwrap() error {
	return internalerr.ErrIdentifierExtraction
}

// ExtractTextID scans the report line by line. For the first line containing
// IDMarker whose text after the last ':' parses as a non-negative integer,
// that integer is returned. Later matching lines are ignored.
func ExtractTextID(report string) (int64, error) {
	for _, line := range strings.Split(report, "\n") {
		if !strings.Contains(line, IDMarker) {
			continue
		}
		tail := strings.TrimSpace(line[strings.LastIndex(line, ":")+1:])
		id, err := strconv.ParseInt(tail, 10, 64)
		if err != nil || id < 0 {
			continue
		}
		return id, nil
	}
	return 0, &ExtractionError{Report: report}
}
