package port

// ChangeSet names the asset paths changed in one watch interval.
type ChangeSet struct {
	Paths []string `json:"paths"`
}

// ReloadNotifier pushes change notifications to connected clients.
type ReloadNotifier interface {
	BroadcastReload(changes ChangeSet)
	ClientCount() int
}
