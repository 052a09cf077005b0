//go:build darwin

package capture

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework Cocoa -framework CoreFoundation -F/System/Library/PrivateFrameworks -framework MultitouchSupport

#include <ApplicationServices/ApplicationServices.h>
#include <Cocoa/Cocoa.h>
#include <pthread.h>
#include <string.h>
#include <unistd.h>
#include "capture_darwin.h"

extern void goTapEvent(tapRecord *rec);
extern void goTapDisabled(void);
extern void goTouchFrame(mtFinger *fingers, int count, double timestamp);

typedef void *MTDeviceRef;
typedef int (*MTContactCallbackFunction)(MTDeviceRef, mtFinger *, int, double, int);
CFMutableArrayRef MTDeviceCreateList(void);
void MTRegisterContactFrameCallback(MTDeviceRef, MTContactCallbackFunction);
void MTUnregisterContactFrameCallback(MTDeviceRef, MTContactCallbackFunction);
void MTDeviceStart(MTDeviceRef, int);
void MTDeviceStop(MTDeviceRef);

// NSEvent gesture types delivered through the session tap.
#define nsTypeRotate  18
#define nsTypeMagnify 30
#define nsTypeSwipe   31

static CFMachPortRef eventTap = NULL;
static CFRunLoopSourceRef runLoopSource = NULL;
static CFRunLoopRef tapRunLoop = NULL;
static volatile int tapEnabled = 0;
static pthread_t runLoopThreadHandle;
static volatile int threadRunning = 0;

static CGEventRef tapCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon) {
    (void)proxy;
    (void)refcon;

    if (type == kCGEventTapDisabledByTimeout || type == kCGEventTapDisabledByUserInput) {
        if (eventTap != NULL) {
            CGEventTapEnable(eventTap, true);
        }
        goTapDisabled();
        return event;
    }

    tapRecord rec;
    memset(&rec, 0, sizeof(rec));
    rec.flags = (uint64_t)CGEventGetFlags(event);
    CGPoint loc = CGEventGetLocation(event);
    rec.x = loc.x;
    rec.y = loc.y;

    switch ((int)type) {
    case kCGEventKeyDown:
        rec.kind = recKeyDown;
        rec.keycode = CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
        rec.autorepeat = (int)CGEventGetIntegerValueField(event, kCGKeyboardEventAutorepeat);
        break;
    case kCGEventKeyUp:
        rec.kind = recKeyUp;
        rec.keycode = CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
        break;
    case kCGEventFlagsChanged:
        rec.kind = recFlags;
        rec.keycode = CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
        break;
    case kCGEventLeftMouseDown:
    case kCGEventRightMouseDown:
    case kCGEventOtherMouseDown:
        rec.kind = recMouseDown;
        rec.button = CGEventGetIntegerValueField(event, kCGMouseEventButtonNumber);
        break;
    case kCGEventLeftMouseUp:
    case kCGEventRightMouseUp:
    case kCGEventOtherMouseUp:
        rec.kind = recMouseUp;
        rec.button = CGEventGetIntegerValueField(event, kCGMouseEventButtonNumber);
        break;
    case kCGEventMouseMoved:
    case kCGEventLeftMouseDragged:
    case kCGEventRightMouseDragged:
    case kCGEventOtherMouseDragged:
        rec.kind = recMouseMove;
        break;
    case kCGEventScrollWheel:
        rec.kind = recScroll;
        rec.continuous = (int)CGEventGetIntegerValueField(event, kCGScrollWheelEventIsContinuous);
        if (rec.continuous) {
            rec.scrollY = (double)CGEventGetIntegerValueField(event, kCGScrollWheelEventPointDeltaAxis1);
            rec.scrollX = (double)CGEventGetIntegerValueField(event, kCGScrollWheelEventPointDeltaAxis2);
        } else {
            rec.scrollY = CGEventGetDoubleValueField(event, kCGScrollWheelEventFixedPtDeltaAxis1);
            rec.scrollX = CGEventGetDoubleValueField(event, kCGScrollWheelEventFixedPtDeltaAxis2);
        }
        rec.scrollPhase = (int)CGEventGetIntegerValueField(event, kCGScrollWheelEventScrollPhase);
        rec.momentumPhase = (int)CGEventGetIntegerValueField(event, kCGScrollWheelEventMomentumPhase);
        break;
    case nsTypeMagnify:
    case nsTypeRotate:
    case nsTypeSwipe:
        @autoreleasepool {
            NSEvent *ns = [NSEvent eventWithCGEvent:event];
            if (ns == nil) {
                return event;
            }
            if ((int)type == nsTypeMagnify) {
                rec.kind = recMagnify;
                rec.magnification = ns.magnification;
            } else if ((int)type == nsTypeRotate) {
                rec.kind = recRotate;
                rec.rotation = ns.rotation;
            } else {
                rec.kind = recSwipe;
                rec.swipeX = ns.deltaX;
                rec.swipeY = ns.deltaY;
            }
        }
        break;
    default:
        return event;
    }

    goTapEvent(&rec);
    return event;
}

static void* runLoopThread(void* arg) {
    (void)arg;
    tapRunLoop = CFRunLoopGetCurrent();
    CFRunLoopAddSource(tapRunLoop, runLoopSource, kCFRunLoopCommonModes);
    CGEventTapEnable(eventTap, true);
    tapEnabled = 1;

    CFRunLoopRun();

    tapEnabled = 0;
    tapRunLoop = NULL;
    return NULL;
}

int inputvizAXTrusted(void) {
    NSDictionary *options = @{(__bridge id)kAXTrustedCheckOptionPrompt: @NO};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options) ? 1 : 0;
}

int inputvizStartTap(void) {
    if (eventTap != NULL) {
        return 1;
    }

    CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) |
        CGEventMaskBit(kCGEventKeyUp) |
        CGEventMaskBit(kCGEventFlagsChanged) |
        CGEventMaskBit(kCGEventLeftMouseDown) |
        CGEventMaskBit(kCGEventLeftMouseUp) |
        CGEventMaskBit(kCGEventRightMouseDown) |
        CGEventMaskBit(kCGEventRightMouseUp) |
        CGEventMaskBit(kCGEventOtherMouseDown) |
        CGEventMaskBit(kCGEventOtherMouseUp) |
        CGEventMaskBit(kCGEventMouseMoved) |
        CGEventMaskBit(kCGEventLeftMouseDragged) |
        CGEventMaskBit(kCGEventRightMouseDragged) |
        CGEventMaskBit(kCGEventOtherMouseDragged) |
        CGEventMaskBit(kCGEventScrollWheel) |
        ((CGEventMask)1 << nsTypeRotate) |
        ((CGEventMask)1 << nsTypeMagnify) |
        ((CGEventMask)1 << nsTypeSwipe);

    eventTap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionListenOnly,
        mask,
        tapCallback,
        NULL
    );
    if (eventTap == NULL) {
        return -1;
    }

    runLoopSource = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, eventTap, 0);
    if (runLoopSource == NULL) {
        CFRelease(eventTap);
        eventTap = NULL;
        return -2;
    }

    threadRunning = 1;
    if (pthread_create(&runLoopThreadHandle, NULL, runLoopThread, NULL) != 0) {
        CFRelease(runLoopSource);
        CFRelease(eventTap);
        runLoopSource = NULL;
        eventTap = NULL;
        threadRunning = 0;
        return -3;
    }

    for (int i = 0; i < 100 && !tapEnabled; i++) {
        usleep(10000);
    }
    if (!tapEnabled) {
        inputvizStopTap();
        return -4;
    }
    return 0;
}

void inputvizStopTap(void) {
    if (eventTap == NULL) {
        return;
    }
    CGEventTapEnable(eventTap, false);
    tapEnabled = 0;
    if (tapRunLoop != NULL) {
        CFRunLoopStop(tapRunLoop);
    }
    if (threadRunning) {
        pthread_join(runLoopThreadHandle, NULL);
        threadRunning = 0;
    }
    if (runLoopSource != NULL) {
        CFRelease(runLoopSource);
        runLoopSource = NULL;
    }
    CFRelease(eventTap);
    eventTap = NULL;
    tapRunLoop = NULL;
}

int inputvizTapEnabled(void) {
    return tapEnabled;
}

static CFMutableArrayRef mtDevices = NULL;

static int mtCallback(MTDeviceRef dev, mtFinger *data, int count, double timestamp, int frame) {
    (void)dev;
    (void)frame;
    goTouchFrame(data, count, timestamp);
    return 0;
}

int inputvizTouchDeviceCount(void) {
    CFMutableArrayRef list = MTDeviceCreateList();
    if (list == NULL) {
        return 0;
    }
    int n = (int)CFArrayGetCount(list);
    CFRelease(list);
    return n;
}

int inputvizStartTouch(void) {
    if (mtDevices != NULL) {
        return 1;
    }
    mtDevices = MTDeviceCreateList();
    if (mtDevices == NULL) {
        return -1;
    }
    CFIndex n = CFArrayGetCount(mtDevices);
    if (n == 0) {
        CFRelease(mtDevices);
        mtDevices = NULL;
        return -1;
    }
    for (CFIndex i = 0; i < n; i++) {
        MTDeviceRef dev = (MTDeviceRef)CFArrayGetValueAtIndex(mtDevices, i);
        MTRegisterContactFrameCallback(dev, mtCallback);
        MTDeviceStart(dev, 0);
    }
    return 0;
}

void inputvizStopTouch(void) {
    if (mtDevices == NULL) {
        return;
    }
    CFIndex n = CFArrayGetCount(mtDevices);
    for (CFIndex i = 0; i < n; i++) {
        MTDeviceRef dev = (MTDeviceRef)CFArrayGetValueAtIndex(mtDevices, i);
        MTUnregisterContactFrameCallback(dev, mtCallback);
        MTDeviceStop(dev);
    }
    CFRelease(mtDevices);
    mtDevices = NULL;
}
*/
import "C"

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Accessibility guidance shown when the tap can't be created.
const accessibilityHint = "Accessibility permission required. Go to System Settings > Privacy & Security > Accessibility and add this application."

// The OS callbacks carry no context pointer, so the live provider is global.
var activeProvider atomic.Pointer[darwinProvider]

// darwinProvider shares one listen-only session event tap between keyboard
// and mouse registrations and runs MultitouchSupport for touch sources.
type darwinProvider struct {
	registry
	logger *slog.Logger

	mu       sync.Mutex
	tapOn    bool
	touchOn  bool
	contacts touchTracker
	frames   frameClock

	tapDisabled atomic.Int64
}

func newPlatformProvider(logger *slog.Logger) Provider {
	p := &darwinProvider{logger: logger.With("component", "capture")}
	activeProvider.Store(p)
	return p
}

// Available reports accessibility trust for the tap kinds and device
// presence for touch.
func (p *darwinProvider) Available(k Kind) (bool, string) {
	if k == KindTouch {
		if n := int(C.inputvizTouchDeviceCount()); n > 0 {
			return true, fmt.Sprintf("MultitouchSupport: %d device(s)", n)
		}
		return false, "no multitouch devices found"
	}
	if C.inputvizAXTrusted() == 1 {
		return true, "CGEventTap available"
	}
	return false, accessibilityHint
}

func (p *darwinProvider) RegisterKeyTap(mask Mask, h KeyHandler) (Handle, error) {
	if err := p.ensureTap(); err != nil {
		return 0, err
	}
	return p.add(&tap{kind: KindKeyboard, mask: mask, key: h}), nil
}

func (p *darwinProvider) RegisterMouseTap(mask Mask, h MouseHandler) (Handle, error) {
	if err := p.ensureTap(); err != nil {
		return 0, err
	}
	return p.add(&tap{kind: KindMouse, mask: mask, mouse: h}), nil
}

func (p *darwinProvider) RegisterTouchSource(h TouchHandler) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.touchOn {
		if C.inputvizStartTouch() < 0 {
			return 0, fmt.Errorf("start multitouch: %w", ErrNotAvailable)
		}
		p.touchOn = true
	}
	return p.add(&tap{kind: KindTouch, mask: ^Mask(0), touch: h}), nil
}

func (p *darwinProvider) Enable(h Handle, on bool) error {
	return p.enable(h, on)
}

func (p *darwinProvider) Unregister(h Handle) error {
	k, remaining, err := p.remove(h)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case k == KindTouch && remaining == 0 && p.touchOn:
		C.inputvizStopTouch()
		p.touchOn = false
		p.contacts.reset()
		p.frames.reset()
	case k != KindTouch && p.tapOn && p.count(KindKeyboard)+p.count(KindMouse) == 0:
		C.inputvizStopTap()
		p.tapOn = false
	}
	return nil
}

func (p *darwinProvider) ensureTap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tapOn {
		return nil
	}
	if C.inputvizAXTrusted() != 1 {
		return fmt.Errorf("%s: %w", accessibilityHint, ErrPermissionDenied)
	}

	switch C.inputvizStartTap() {
	case 0, 1:
	case -1:
		return fmt.Errorf("create event tap: %w", ErrPermissionDenied)
	case -2:
		return errors.New("failed to create run loop source")
	case -3:
		return errors.New("failed to create run loop thread")
	default:
		return errors.New("timeout waiting for event tap to start")
	}
	p.tapOn = true
	return nil
}

// TapDisableCount returns how many times the system disabled the tap.
func (p *darwinProvider) TapDisableCount() int64 {
	return p.tapDisabled.Load()
}
