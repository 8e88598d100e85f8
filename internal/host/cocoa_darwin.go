//go:build darwin

package host

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa -framework ApplicationServices -framework Carbon

#import <Cocoa/Cocoa.h>
#import <ApplicationServices/ApplicationServices.h>
#import <Carbon/Carbon.h>
#include <stdlib.h>
#include <string.h>

// Status codes shared with Go.
#define RL_OK 0
#define RL_NO_FOCUS 1
#define RL_FAILED 2

// Accessibility queries give up after this many seconds.
static const float rlAXTimeout = 0.25;

static char *rlCopyCString(NSString *s) {
    if (s == nil) {
        return NULL;
    }
    const char *utf8 = [s UTF8String];
    return utf8 ? strdup(utf8) : NULL;
}

char *rlFrontmostBundleID(void) {
    @autoreleasepool {
        NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
        return rlCopyCString([app bundleIdentifier]);
    }
}

int rlAccessibilityTrusted(void) {
    return AXIsProcessTrusted() ? 1 : 0;
}

static AXUIElementRef rlFocusedElement(void) {
    AXUIElementRef system = AXUIElementCreateSystemWide();
    AXUIElementSetMessagingTimeout(system, rlAXTimeout);
    CFTypeRef focused = NULL;
    AXError err = AXUIElementCopyAttributeValue(system, kAXFocusedUIElementAttribute, &focused);
    CFRelease(system);
    if (err != kAXErrorSuccess || focused == NULL) {
        return NULL;
    }
    AXUIElementSetMessagingTimeout((AXUIElementRef)focused, rlAXTimeout);
    return (AXUIElementRef)focused;
}

static char *rlCopyStringAttribute(AXUIElementRef el, CFStringRef attr) {
    CFTypeRef value = NULL;
    if (AXUIElementCopyAttributeValue(el, attr, &value) != kAXErrorSuccess || value == NULL) {
        return NULL;
    }
    char *out = NULL;
    if (CFGetTypeID(value) == CFStringGetTypeID()) {
        out = rlCopyCString((__bridge NSString *)value);
    }
    CFRelease(value);
    return out;
}

int rlFocusedSelection(char **out) {
    @autoreleasepool {
        AXUIElementRef el = rlFocusedElement();
        if (el == NULL) {
            return RL_NO_FOCUS;
        }
        *out = rlCopyStringAttribute(el, kAXSelectedTextAttribute);
        CFRelease(el);
        return *out ? RL_OK : RL_FAILED;
    }
}

int rlFocusedValue(char **out, long *location, long *length) {
    @autoreleasepool {
        AXUIElementRef el = rlFocusedElement();
        if (el == NULL) {
            return RL_NO_FOCUS;
        }
        *out = rlCopyStringAttribute(el, kAXValueAttribute);
        if (*out == NULL) {
            CFRelease(el);
            return RL_FAILED;
        }

        *location = 0;
        *length = 0;
        CFTypeRef rangeValue = NULL;
        if (AXUIElementCopyAttributeValue(el, kAXSelectedTextRangeAttribute, &rangeValue) == kAXErrorSuccess && rangeValue != NULL) {
            CFRange range;
            if (AXValueGetType((AXValueRef)rangeValue) == kAXValueCFRangeType &&
                AXValueGetValue((AXValueRef)rangeValue, kAXValueCFRangeType, &range)) {
                *location = range.location;
                *length = range.length;
            }
            CFRelease(rangeValue);
        }
        CFRelease(el);
        return RL_OK;
    }
}

int rlSetFocusedSelection(const char *text) {
    @autoreleasepool {
        AXUIElementRef el = rlFocusedElement();
        if (el == NULL) {
            return RL_NO_FOCUS;
        }
        NSString *s = [NSString stringWithUTF8String:text];
        AXError err = AXUIElementSetAttributeValue(el, kAXSelectedTextAttribute, (__bridge CFTypeRef)s);
        CFRelease(el);
        return err == kAXErrorSuccess ? RL_OK : RL_FAILED;
    }
}

int rlPostKey(int keyCode, unsigned long long flags, int down) {
    CGEventSourceRef src = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
    CGEventRef ev = CGEventCreateKeyboardEvent(src, (CGKeyCode)keyCode, down ? true : false);
    if (ev == NULL) {
        if (src) CFRelease(src);
        return RL_FAILED;
    }
    // Always set flags, even to zero, so modifiers still held from the
    // hotkey do not leak into the injected event.
    CGEventSetFlags(ev, (CGEventFlags)flags);
    CGEventPost(kCGHIDEventTap, ev);
    CFRelease(ev);
    if (src) CFRelease(src);
    return RL_OK;
}

// --- Pasteboard ---

long rlPbChangeCount(void) {
    @autoreleasepool {
        return (long)[[NSPasteboard generalPasteboard] changeCount];
    }
}

char *rlPbReadString(void) {
    @autoreleasepool {
        NSString *s = [[NSPasteboard generalPasteboard] stringForType:NSPasteboardTypeString];
        return rlCopyCString(s);
    }
}

int rlPbWriteTransient(const char *text) {
    @autoreleasepool {
        NSPasteboard *pb = [NSPasteboard generalPasteboard];
        NSPasteboardItem *item = [[[NSPasteboardItem alloc] init] autorelease];
        [item setString:[NSString stringWithUTF8String:text] forType:NSPasteboardTypeString];
        [item setData:[NSData data] forType:@"org.nspasteboard.TransientType"];
        [pb clearContents];
        return [pb writeObjects:@[item]] ? RL_OK : RL_FAILED;
    }
}

// Captured items: NSArray of NSArray of @[type, data]. Access is serialized
// by the Go side.
static NSMutableArray *rlCaptured = nil;

int rlPbCapture(void) {
    @autoreleasepool {
        [rlCaptured release];
        rlCaptured = [[NSMutableArray alloc] init];
        for (NSPasteboardItem *item in [[NSPasteboard generalPasteboard] pasteboardItems]) {
            NSMutableArray *reps = [NSMutableArray array];
            for (NSString *type in [item types]) {
                NSData *data = [item dataForType:type];
                if (data != nil) {
                    [reps addObject:@[type, data]];
                }
            }
            [rlCaptured addObject:reps];
        }
        return (int)[rlCaptured count];
    }
}

int rlPbTypeCount(int item) {
    return (int)[[rlCaptured objectAtIndex:item] count];
}

char *rlPbTypeName(int item, int idx) {
    @autoreleasepool {
        NSArray *rep = [[rlCaptured objectAtIndex:item] objectAtIndex:idx];
        return rlCopyCString([rep objectAtIndex:0]);
    }
}

void *rlPbData(int item, int idx, int *length) {
    NSArray *rep = [[rlCaptured objectAtIndex:item] objectAtIndex:idx];
    NSData *data = [rep objectAtIndex:1];
    *length = (int)[data length];
    if (*length == 0) {
        return NULL;
    }
    void *buf = malloc(*length);
    memcpy(buf, [data bytes], *length);
    return buf;
}

void rlPbRelease(void) {
    [rlCaptured release];
    rlCaptured = nil;
}

static NSMutableArray *rlPending = nil;

void rlPbBeginRestore(void) {
    [rlPending release];
    rlPending = [[NSMutableArray alloc] init];
}

void rlPbRestoreItem(void) {
    NSPasteboardItem *item = [[NSPasteboardItem alloc] init];
    [rlPending addObject:item];
    [item release];
}

void rlPbRestoreSetData(const char *type, const void *bytes, int length) {
    @autoreleasepool {
        NSPasteboardItem *item = [rlPending lastObject];
        NSData *data = [NSData dataWithBytes:bytes length:length];
        [item setData:data forType:[NSString stringWithUTF8String:type]];
    }
}

int rlPbRestoreCommit(void) {
    @autoreleasepool {
        NSPasteboard *pb = [NSPasteboard generalPasteboard];
        [pb clearContents];
        BOOL ok = YES;
        if ([rlPending count] > 0) {
            ok = [pb writeObjects:rlPending];
        }
        [rlPending release];
        rlPending = nil;
        return ok ? RL_OK : RL_FAILED;
    }
}

// --- Input sources ---

int rlSelectNextInputSource(void) {
    @autoreleasepool {
        NSDictionary *filter = @{
            (__bridge NSString *)kTISPropertyInputSourceCategory: (__bridge NSString *)kTISCategoryKeyboardInputSource,
            (__bridge NSString *)kTISPropertyInputSourceIsSelectCapable: @YES,
        };
        CFArrayRef list = TISCreateInputSourceList((__bridge CFDictionaryRef)filter, false);
        if (list == NULL) {
            return RL_FAILED;
        }
        CFIndex count = CFArrayGetCount(list);
        if (count < 2) {
            CFRelease(list);
            return RL_OK;
        }

        TISInputSourceRef current = TISCopyCurrentKeyboardInputSource();
        CFStringRef currentID = current ? (CFStringRef)TISGetInputSourceProperty(current, kTISPropertyInputSourceID) : NULL;
        CFIndex next = 0;
        for (CFIndex i = 0; i < count; i++) {
            TISInputSourceRef src = (TISInputSourceRef)CFArrayGetValueAtIndex(list, i);
            CFStringRef id = (CFStringRef)TISGetInputSourceProperty(src, kTISPropertyInputSourceID);
            if (currentID && id && CFStringCompare(id, currentID, 0) == kCFCompareEqualTo) {
                next = (i + 1) % count;
                break;
            }
        }
        OSStatus st = TISSelectInputSource((TISInputSourceRef)CFArrayGetValueAtIndex(list, next));
        if (current) CFRelease(current);
        CFRelease(list);
        return st == noErr ? RL_OK : RL_FAILED;
    }
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

// Virtual key codes from Carbon's Events.h.
const (
	vkANSIC  = 8
	vkANSIE  = 14
	vkANSIV  = 9
	vkDelete = 51
	vkEnd    = 119
)

// keyPairDelay separates the down and up halves of one keystroke.
const keyPairDelay = time.Millisecond

type cocoa struct {
	pbMu sync.Mutex
}

// New returns the Cocoa host.
func New() (Host, error) {
	return &cocoa{}, nil
}

// AccessibilityTrusted reports whether the process may use the
// accessibility API.
func AccessibilityTrusted() bool {
	return C.rlAccessibilityTrusted() == 1
}

func takeCString(p *C.char) string {
	if p == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(p))
	return C.GoString(p)
}

func statusErr(op string, st C.int) error {
	switch st {
	case C.RL_OK:
		return nil
	case C.RL_NO_FOCUS:
		return fmt.Errorf("%s: %w", op, ErrNoFocus)
	default:
		return fmt.Errorf("%s failed", op)
	}
}

func (c *cocoa) FrontmostBundleID() (string, error) {
	id := takeCString(C.rlFrontmostBundleID())
	if id == "" {
		return "", fmt.Errorf("frontmost application has no bundle id")
	}
	return id, nil
}

func (c *cocoa) FocusedSelection() (string, error) {
	var out *C.char
	st := C.rlFocusedSelection(&out)
	text := takeCString(out)
	if err := statusErr("reading selected text", st); err != nil {
		return "", err
	}
	return text, nil
}

func (c *cocoa) FocusedValue() (Value, error) {
	var out *C.char
	var loc, length C.long
	st := C.rlFocusedValue(&out, &loc, &length)
	text := takeCString(out)
	if err := statusErr("reading focused value", st); err != nil {
		return Value{}, err
	}
	return Value{Text: text, Selection: Range{Location: int(loc), Length: int(length)}}, nil
}

func (c *cocoa) SetFocusedSelection(text string) error {
	cs := C.CString(text)
	defer C.free(unsafe.Pointer(cs))
	return statusErr("setting selected text", C.rlSetFocusedSelection(cs))
}

func cgFlags(mods Modifier) C.ulonglong {
	var f C.ulonglong
	if mods&ModShift != 0 {
		f |= C.kCGEventFlagMaskShift
	}
	if mods&ModControl != 0 {
		f |= C.kCGEventFlagMaskControl
	}
	if mods&ModOption != 0 {
		f |= C.kCGEventFlagMaskAlternate
	}
	if mods&ModCommand != 0 {
		f |= C.kCGEventFlagMaskCommand
	}
	return f
}

func keyCode(k Key) (int, error) {
	switch k {
	case KeyBackspace:
		return vkDelete, nil
	case KeyEnd:
		return vkEnd, nil
	case KeyC:
		return vkANSIC, nil
	case KeyE:
		return vkANSIE, nil
	case KeyV:
		return vkANSIV, nil
	default:
		return 0, fmt.Errorf("unknown key %d", k)
	}
}

func (c *cocoa) Keystroke(key Key, mods Modifier) error {
	code, err := keyCode(key)
	if err != nil {
		return err
	}
	flags := cgFlags(mods)
	if C.rlPostKey(C.int(code), flags, 1) != C.RL_OK {
		return fmt.Errorf("posting key down %d", code)
	}
	time.Sleep(keyPairDelay)
	if C.rlPostKey(C.int(code), flags, 0) != C.RL_OK {
		return fmt.Errorf("posting key up %d", code)
	}
	return nil
}

func (c *cocoa) Shortcut(s Shortcut) error {
	switch s {
	case ShortcutCopy:
		return c.Keystroke(KeyC, ModCommand)
	case ShortcutPaste:
		return c.Keystroke(KeyV, ModCommand)
	case ShortcutEndOfLine:
		// Readline and zle both bind ctrl+e; the End key scrolls in Terminal.app.
		return c.Keystroke(KeyE, ModControl)
	default:
		return fmt.Errorf("unknown shortcut %d", s)
	}
}

func (c *cocoa) ChangeCount() (int64, error) {
	return int64(C.rlPbChangeCount()), nil
}

func (c *cocoa) ReadString() (string, error) {
	return takeCString(C.rlPbReadString()), nil
}

func (c *cocoa) WriteTransient(text string) error {
	cs := C.CString(text)
	defer C.free(unsafe.Pointer(cs))
	return statusErr("writing transient clipboard", C.rlPbWriteTransient(cs))
}

func (c *cocoa) Snapshot() (Snapshot, error) {
	c.pbMu.Lock()
	defer c.pbMu.Unlock()

	n := int(C.rlPbCapture())
	defer C.rlPbRelease()

	snap := Snapshot{Items: make([]Item, 0, n)}
	for i := 0; i < n; i++ {
		types := int(C.rlPbTypeCount(C.int(i)))
		item := Item{Representations: make([]Representation, 0, types)}
		for j := 0; j < types; j++ {
			name := takeCString(C.rlPbTypeName(C.int(i), C.int(j)))
			var length C.int
			p := C.rlPbData(C.int(i), C.int(j), &length)
			var data []byte
			if p != nil {
				data = C.GoBytes(p, length)
				C.free(p)
			}
			item.Representations = append(item.Representations, Representation{Type: name, Data: data})
		}
		snap.Items = append(snap.Items, item)
	}
	return snap, nil
}

func (c *cocoa) Restore(s Snapshot) error {
	c.pbMu.Lock()
	defer c.pbMu.Unlock()

	C.rlPbBeginRestore()
	for _, item := range s.Items {
		C.rlPbRestoreItem()
		for _, r := range item.Representations {
			ct := C.CString(r.Type)
			var p unsafe.Pointer
			if len(r.Data) > 0 {
				p = C.CBytes(r.Data)
			}
			C.rlPbRestoreSetData(ct, p, C.int(len(r.Data)))
			C.free(unsafe.Pointer(ct))
			if p != nil {
				C.free(p)
			}
		}
	}
	return statusErr("restoring clipboard", C.rlPbRestoreCommit())
}

func (c *cocoa) SwitchToNextLayout() error {
	return statusErr("selecting input source", C.rlSelectNextInputSource())
}
