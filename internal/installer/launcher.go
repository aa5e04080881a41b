package installer

// Launcher starts the helper script so that it outlives this process.
type Launcher interface {
	Launch(scriptPath string) error
}

// DetachedLauncher starts the helper in its own session or process group.
// On Windows, Elevate requests administrator rights through the "runas" verb.
type DetachedLauncher struct {
	Elevate bool
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(scriptPath string) error

func (f LauncherFunc) Launch(scriptPath string) error {
	return f(scriptPath)
}
