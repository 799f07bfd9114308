//go:build tinygo || !cgo

package matgraphaux

import (
	"errors"

	"github.com/soypat/matgraph/glbuild"
)

func ui(g *glbuild.Graph, out glbuild.NodeID, cfg UIConfig) error {
	return errors.New("require cgo for UI rendering")
}
