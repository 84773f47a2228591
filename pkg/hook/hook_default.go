//go:build !darwin

package hook

import "time"

func platformSource() Source {
	now := time.Now()
	return Script([]Sample{
		{Time: now, Kind: KindKeyDown, Code: 0},
		{Time: now.Add(40 * time.Millisecond), Kind: KindKeyUp, Code: 0},
		{Time: now.Add(90 * time.Millisecond), Kind: KindMouseMove, X: 120, Y: 340},
		{Time: now.Add(120 * time.Millisecond), Kind: KindMouseDown, Button: 0, X: 120, Y: 340},
		{Time: now.Add(160 * time.Millisecond), Kind: KindMouseUp, Button: 0, X: 120, Y: 340},
		{Time: now.Add(200 * time.Millisecond), Kind: KindScroll, DY: -1},
	})
}
