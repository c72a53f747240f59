package remarketing

import (
	"net/http"

	"github.com/jaupesca/remarketing-gateway/internal/gateway"
)

const (
	// ProjectName is the registry name of the remarketing sub-application.
	ProjectName = "remarketing"
	// MountPath is where the gateway serves it.
	MountPath = "/api/remarketing"
)

// NewProject packages the remarketing handler for the gateway registry.
func NewProject(h http.Handler) gateway.Project {
	return gateway.Project{Name: ProjectName, MountPath: MountPath, Handler: h}
}
