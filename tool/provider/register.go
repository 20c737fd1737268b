package provider

import (
	"github.com/m3stack/m3-stack/tool"
	"sync"
)

var once sync.Once

// RegisterAll registers the providers of this package, most precise first. Calling it more than once has no effect.
func RegisterAll() {
	once.Do(func() {
		tool.RegisterProvider(LocalProvider)
		tool.RegisterProvider(PathProvider)
		tool.RegisterProvider(NpxProvider)
	})
}
