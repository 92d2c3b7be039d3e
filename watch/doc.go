// Package watch tells file panels when the directories they show may have
// changed.
//
// Basic usage:
//
//	coord := watch.New(watch.Options{})
//	defer coord.Shutdown()
//
//	entry, err := coord.RegisterWatch("/home/user", myPanel, nil)
//	if errors.Is(err, watch.ErrWatchFailed) {
//		// Fall back to refreshing the panel by hand.
//	}
//
// Owners receive OnDirectoryMaybeChanged with a stamp that strictly increases
// per owner; a stamp not newer than the last one acted on can be dropped.
//
// Bulk operations (copying many files, say) are bracketed with BeginSuspend
// and EndSuspend. While suspended, touched owners are only remembered; the
// outermost EndSuspend notifies each of them once:
//
//	coord.BeginSuspend()
//	copyEverything()
//	coord.EndSuspend()
//
// Closing a watch never blocks the caller for long, even when the directory
// lives on an unresponsive network mount:
//
//	coord.ChangeWatch(entry, "/mnt/share/projects")
//	coord.UnregisterWatch(entry)
package watch
