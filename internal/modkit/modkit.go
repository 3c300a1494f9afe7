// Package modkit wires services into a process: shared deps, build options and the module contract
package modkit

import (
	"modwatch/internal/modkit/module"
	"modwatch/internal/platform/logger"
	phttp "modwatch/internal/platform/net/http"
)

// Module is the common surface for modules that can mount routes and expose ports
type Module = module.Module

// Builder constructs a Module from shared deps and options
type Builder func(Deps, ...Option) Module

// Mount registers every module's ports by name and mounts its routes on r
// r may be nil for processes without an http surface
func Mount(r phttp.Router, mods ...Module) {
	for _, m := range mods {
		if module.Register(m.Name(), m.Ports()) {
			logger.Named("modkit").Warn().Str("module", m.Name()).Msg("ports registered twice, keeping the latest")
		}
		if r != nil {
			m.MountRoutes(r)
		}
	}
	logger.Named("modkit").Debug().Strs("modules", module.Names()).Bool("http", r != nil).Msg("modules mounted")
}
