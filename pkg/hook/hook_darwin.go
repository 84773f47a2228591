//go:build darwin

package hook

/*
#cgo darwin LDFLAGS: -framework CoreGraphics -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

static Boolean axCheckTrusted(void) {
        const void *keys[] = { kAXTrustedCheckOptionPrompt };
        const void *values[] = { kCFBooleanTrue };
        CFDictionaryRef options = CFDictionaryCreate(kCFAllocatorDefault, keys, values, 1,
                                                     &kCFTypeDictionaryKeyCallBacks,
                                                     &kCFTypeDictionaryValueCallBacks);
        Boolean trusted = AXIsProcessTrustedWithOptions(options);
        CFRelease(options);
        return trusted;
}

extern CGEventRef goHandleInput(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *userInfo);

static CFRunLoopSourceRef startInputTap(uintptr_t handle, CGEventMask mask, CFMachPortRef *tapOut) {
        CFMachPortRef tap = CGEventTapCreate(kCGSessionEventTap,
                                             kCGHeadInsertEventTap,
                                             kCGEventTapOptionListenOnly,
                                             mask,
                                             goHandleInput,
                                             (void *)handle);
        if (tap == NULL) {
                return NULL;
        }
        CGEventTapEnable(tap, true);
        CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
        *tapOut = tap;
        return source;
}

static CFRunLoopRef currentRunLoop(void) {
        return CFRunLoopGetCurrent();
}

static CGEventMask cgEventMaskBit(CGEventType type) {
        return ((CGEventMask)1) << type;
}

static void addSourceToRunLoop(CFRunLoopRef loop, CFRunLoopSourceRef source) {
        CFRunLoopAddSource(loop, source, kCFRunLoopCommonModes);
}

static void runCurrentRunLoop(void) {
        CFRunLoopRun();
}

static void stopRunLoop(CFRunLoopRef loop) {
        CFRunLoopStop(loop);
}

static double cgEventGetX(CGEventRef event) {
        CGPoint point = CGEventGetLocation(event);
        return point.x;
}

static double cgEventGetY(CGEventRef event) {
        CGPoint point = CGEventGetLocation(event);
        return point.y;
}

static int64_t cgEventGetKeycode(CGEventRef event) {
        return CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
}

static int64_t cgEventGetButton(CGEventRef event) {
        return CGEventGetIntegerValueField(event, kCGMouseEventButtonNumber);
}

static int64_t cgEventGetScrollDeltaX(CGEventRef event) {
        return CGEventGetIntegerValueField(event, kCGScrollWheelEventDeltaAxis2);
}

static int64_t cgEventGetScrollDeltaY(CGEventRef event) {
        return CGEventGetIntegerValueField(event, kCGScrollWheelEventDeltaAxis1);
}
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"runtime/cgo"
	"sync"
	"time"
	"unsafe"
)

type quartzSource struct {
	now func() time.Time
}

func platformSource() Source {
	return &quartzSource{now: time.Now}
}

type quartzStream struct {
	emit      Handler
	now       func() time.Time
	loop      C.CFRunLoopRef
	stopped   chan struct{}
	stopLoop  func()
	closeOnce sync.Once
}

func (s *quartzStream) close() {
	s.closeOnce.Do(func() {
		close(s.stopped)
	})
}

func (s *quartzStream) deliver(eventType C.CGEventType, event C.CGEventRef) {
	sample := Sample{Time: s.now()}

	switch eventType {
	case C.kCGEventKeyDown:
		sample.Kind = KindKeyDown
		sample.Code = int64(C.cgEventGetKeycode(event))
	case C.kCGEventKeyUp:
		sample.Kind = KindKeyUp
		sample.Code = int64(C.cgEventGetKeycode(event))
	case C.kCGEventFlagsChanged:
		sample.Kind = KindFlagsChanged
		sample.Code = int64(C.cgEventGetKeycode(event))
	case C.kCGEventLeftMouseDown, C.kCGEventRightMouseDown, C.kCGEventOtherMouseDown:
		sample.Kind = KindMouseDown
		sample.Button = int64(C.cgEventGetButton(event))
		sample.X = float64(C.cgEventGetX(event))
		sample.Y = float64(C.cgEventGetY(event))
	case C.kCGEventLeftMouseUp, C.kCGEventRightMouseUp, C.kCGEventOtherMouseUp:
		sample.Kind = KindMouseUp
		sample.Button = int64(C.cgEventGetButton(event))
		sample.X = float64(C.cgEventGetX(event))
		sample.Y = float64(C.cgEventGetY(event))
	case C.kCGEventMouseMoved, C.kCGEventLeftMouseDragged, C.kCGEventRightMouseDragged:
		sample.Kind = KindMouseMove
		sample.X = float64(C.cgEventGetX(event))
		sample.Y = float64(C.cgEventGetY(event))
	case C.kCGEventScrollWheel:
		sample.Kind = KindScroll
		sample.DX = int64(C.cgEventGetScrollDeltaX(event))
		sample.DY = int64(C.cgEventGetScrollDeltaY(event))
	default:
		sample.Kind = KindUnknown
	}

	s.emit(sample)
}

func (s *quartzSource) Stream(ctx context.Context, emit Handler) error {
	if C.axCheckTrusted() == C.Boolean(0) {
		return ErrAccessibilityPermission
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// The tap and its run loop must live on one OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	stream := &quartzStream{
		emit:    emit,
		now:     s.now,
		stopped: make(chan struct{}),
	}
	handle := cgo.NewHandle(stream)
	defer handle.Delete()

	mask := C.cgEventMaskBit(C.kCGEventKeyDown) |
		C.cgEventMaskBit(C.kCGEventKeyUp) |
		C.cgEventMaskBit(C.kCGEventFlagsChanged) |
		C.cgEventMaskBit(C.kCGEventLeftMouseDown) |
		C.cgEventMaskBit(C.kCGEventLeftMouseUp) |
		C.cgEventMaskBit(C.kCGEventRightMouseDown) |
		C.cgEventMaskBit(C.kCGEventRightMouseUp) |
		C.cgEventMaskBit(C.kCGEventOtherMouseDown) |
		C.cgEventMaskBit(C.kCGEventOtherMouseUp) |
		C.cgEventMaskBit(C.kCGEventMouseMoved) |
		C.cgEventMaskBit(C.kCGEventLeftMouseDragged) |
		C.cgEventMaskBit(C.kCGEventRightMouseDragged) |
		C.cgEventMaskBit(C.kCGEventScrollWheel)

	var tap C.CFMachPortRef
	source := C.startInputTap(C.uintptr_t(handle), mask, &tap)
	if source == nil {
		return fmt.Errorf("%w: CGEventTapCreate returned NULL", ErrRegistration)
	}
	defer C.CFRelease(C.CFTypeRef(source))
	defer C.CFRelease(C.CFTypeRef(tap))

	loop := C.currentRunLoop()
	stream.loop = loop
	stopOnce := sync.Once{}
	stream.stopLoop = func() {
		stopOnce.Do(func() {
			C.stopRunLoop(loop)
		})
	}
	C.addSourceToRunLoop(loop, source)

	cancelWatcher := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stream.stopLoop()
		case <-stream.stopped:
		}
		close(cancelWatcher)
	}()

	C.runCurrentRunLoop()
	stream.stopLoop()
	stream.close()
	<-cancelWatcher

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

//export goHandleInput
func goHandleInput(_ C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, userInfo unsafe.Pointer) C.CGEventRef {
	handle := cgo.Handle(uintptr(userInfo))
	stream, ok := handle.Value().(*quartzStream)
	if !ok {
		return event
	}
	stream.deliver(eventType, event)
	return event
}
