// Package plugin is the contract between the host and download engines.
//
// An Info describes one engine kind and how well it claims a locator.
// A Plugin is a reference-counted instance of an Info driven through
// Accept, Ctrl and Sync while the engine posts Events from its own
// goroutine:
//
//	p, err := plugin.New(info)
//	if err != nil {
//		return err
//	}
//	defer p.Unref()
//	if !p.Accept(data) || !p.Start() {
//		return errRefused
//	}
//	for p.Sync(data) {
//		for e := p.Pop(); e != nil; e = p.Pop() {
//			handle(e)
//		}
//		time.Sleep(interval)
//	}
//
// Instead of looping on Sync a caller may loop on State and call Sync once
// at the end to flush the final progress.
package plugin
