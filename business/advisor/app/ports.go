package app

import "github.com/fd1az/fee-advisor/business/advisor/domain"

// Reporter renders analysis results for a user.
type Reporter interface {
	Report(rec *domain.Recommendation)
	ReportHealth(status map[string]bool)
	ReportError(err error)
}
