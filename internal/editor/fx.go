package editor

import (
	"github.com/smallbiznis/console/internal/backend"
	"go.uber.org/fx"
)

// Module exposes the backend client as the editor's write side. Editors
// themselves are built per session.
var Module = fx.Module("editor",
	fx.Provide(func(c *backend.Client) Backend { return c }),
)
