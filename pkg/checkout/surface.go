package checkout

// Surface is the visual host for the embedded checkout frame: a modal
// overlay in a browser embedding, a webview in native shells. Mount is
// called with the fully parameterized frame URL; Unmount tears the surface
// down. Implementations need not be safe for concurrent use; the controller
// serializes calls.
type Surface interface {
	Mount(frameURL string) error
	Unmount()
}

// headlessSurface is the default Surface: it tracks mount state and renders
// nothing. Useful for server-side and test embeddings.
type headlessSurface struct {
	mounted bool
	url     string
}

func (s *headlessSurface) Mount(frameURL string) error {
	s.mounted = true
	s.url = frameURL
	return nil
}

func (s *headlessSurface) Unmount() {
	s.mounted = false
	s.url = ""
}
