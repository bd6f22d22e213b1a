package ioerr

// iokitCommon builds iokit_common_err(code): sys_iokit | sub_iokit_common | code.
func iokitCommon(code uint32) Return {
	return Return(int32(0xe0000000 | code))
}

// IOKit common return codes.
var (
	General          = iokitCommon(0x2bc)
	NoMemory         = iokitCommon(0x2bd)
	NoResources      = iokitCommon(0x2be)
	IPCError         = iokitCommon(0x2bf)
	NoDevice         = iokitCommon(0x2c0)
	NotPrivileged    = iokitCommon(0x2c1)
	BadArgument      = iokitCommon(0x2c2)
	LockedRead       = iokitCommon(0x2c3)
	LockedWrite      = iokitCommon(0x2c4)
	ExclusiveAccess  = iokitCommon(0x2c5)
	BadMessageID     = iokitCommon(0x2c6)
	Unsupported      = iokitCommon(0x2c7)
	VMError          = iokitCommon(0x2c8)
	InternalError    = iokitCommon(0x2c9)
	IOError          = iokitCommon(0x2ca)
	CannotLock       = iokitCommon(0x2cc)
	NotOpen          = iokitCommon(0x2cd)
	NotReadable      = iokitCommon(0x2ce)
	NotWritable      = iokitCommon(0x2cf)
	NotAligned       = iokitCommon(0x2d0)
	BadMedia         = iokitCommon(0x2d1)
	StillOpen        = iokitCommon(0x2d2)
	RLDError         = iokitCommon(0x2d3)
	DMAError         = iokitCommon(0x2d4)
	Busy             = iokitCommon(0x2d5)
	Timeout          = iokitCommon(0x2d6)
	Offline          = iokitCommon(0x2d7)
	NotReady         = iokitCommon(0x2d8)
	NotAttached      = iokitCommon(0x2d9)
	NoChannels       = iokitCommon(0x2da)
	NoSpace          = iokitCommon(0x2db)
	PortExists       = iokitCommon(0x2dd)
	CannotWire       = iokitCommon(0x2de)
	NoInterrupt      = iokitCommon(0x2df)
	NoFrames         = iokitCommon(0x2e0)
	MessageTooLarge  = iokitCommon(0x2e1)
	NotPermitted     = iokitCommon(0x2e2)
	NoPower          = iokitCommon(0x2e3)
	NoMedia          = iokitCommon(0x2e4)
	UnformattedMedia = iokitCommon(0x2e5)
	UnsupportedMode  = iokitCommon(0x2e6)
	Underrun         = iokitCommon(0x2e7)
	Overrun          = iokitCommon(0x2e8)
	DeviceError      = iokitCommon(0x2e9)
	NoCompletion     = iokitCommon(0x2ea)
	Aborted          = iokitCommon(0x2eb)
	NoBandwidth      = iokitCommon(0x2ec)
	NotResponding    = iokitCommon(0x2ed)
	IsoTooOld        = iokitCommon(0x2ee)
	IsoTooNew        = iokitCommon(0x2ef)
	NotFound         = iokitCommon(0x2f0)
	Invalid          = iokitCommon(0x1)
)

var descriptions = map[Return]string{
	Success:          "success",
	General:          "general error",
	NoMemory:         "can't allocate memory",
	NoResources:      "resource shortage",
	IPCError:         "error during IPC",
	NoDevice:         "no such device",
	NotPrivileged:    "privilege violation",
	BadArgument:      "invalid argument",
	LockedRead:       "device read locked",
	LockedWrite:      "device write locked",
	ExclusiveAccess:  "exclusive access and device already open",
	BadMessageID:     "sent/received messages had different msg_id",
	Unsupported:      "unsupported function",
	VMError:          "misc. VM failure",
	InternalError:    "internal error",
	IOError:          "general I/O error",
	CannotLock:       "can't acquire lock",
	NotOpen:          "device not open",
	NotReadable:      "read not supported",
	NotWritable:      "write not supported",
	NotAligned:       "alignment error",
	BadMedia:         "media error",
	StillOpen:        "device(s) still open",
	RLDError:         "RLD failure",
	DMAError:         "DMA failure",
	Busy:             "device busy",
	Timeout:          "I/O timeout",
	Offline:          "device offline",
	NotReady:         "not ready",
	NotAttached:      "device not attached",
	NoChannels:       "no DMA channels left",
	NoSpace:          "no space for data",
	PortExists:       "port already exists",
	CannotWire:       "can't wire down physical memory",
	NoInterrupt:      "no interrupt attached",
	NoFrames:         "no DMA frames enqueued",
	MessageTooLarge:  "oversized msg received on interrupt port",
	NotPermitted:     "not permitted",
	NoPower:          "no power to device",
	NoMedia:          "media not present",
	UnformattedMedia: "media not formatted",
	UnsupportedMode:  "no such mode",
	Underrun:         "data underrun",
	Overrun:          "data overrun",
	DeviceError:      "the device is not working properly",
	NoCompletion:     "a completion routine is required",
	Aborted:          "operation aborted",
	NoBandwidth:      "bus bandwidth would be exceeded",
	NotResponding:    "device not responding",
	IsoTooOld:        "isochronous I/O request for distant past",
	IsoTooNew:        "isochronous I/O request for distant future",
	NotFound:         "data was not found",
	Invalid:          "should never be seen",
}

// Codes returns every named non-success code.
func Codes() []Return {
	out := make([]Return, 0, len(descriptions)-1)
	for c := range descriptions {
		if c != Success {
			out = append(out, c)
		}
	}
	return out
}
