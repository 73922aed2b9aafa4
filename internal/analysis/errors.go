package analysis

import (
	"errors"
	"strings"

	"github.com/strrl/jwt-lens/internal/api"
	"github.com/strrl/jwt-lens/pkg/models"
)

var errEmptyResult = errors.New("empty analysis result")

// failureDetail is the text shown for err in notices and placeholders
func failureDetail(err error) string {
	if err == nil {
		return ""
	}
	var terr *api.TransportError
	if errors.As(err, &terr) {
		return terr.Detail()
	}
	var berr *api.BackendError
	if errors.As(err, &berr) && berr.Message != "" {
		return berr.Message
	}
	return err.Error()
}

func backendMessage(r *models.AnalysisResult) string {
	if r.Error != "" {
		return r.Error
	}
	return strings.Join(r.ErrorList, "; ")
}
