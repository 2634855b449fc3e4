package proto

import (
	"code.hybscloud.com/xcp/a2l"
	"code.hybscloud.com/xcp/addr"
	"code.hybscloud.com/xcp/daq"
)

func cmdConnect(d *Dispatcher, payload []byte) ([]byte, error) {
	var mode uint8
	if len(payload) > 0 {
		mode = payload[0]
	}
	if !d.Hooks.OnConnect() {
		return nil, NewError(CodeAccessDenied)
	}
	d.Session.Connect(mode)

	resources := ResourceCAL | ResourceDAQ
	const commModeBasic uint8 = 0 // little-endian byte order, standard address granularity

	body := make([]byte, 7)
	body[0] = resources
	body[1] = commModeBasic
	body[2] = d.Session.MaxCTO()
	putLE16(body[3:5], d.Session.MaxDTO())
	body[5] = ProtocolLayerVersion
	body[6] = TransportLayerVersion
	return body, nil
}

func cmdDisconnect(d *Dispatcher, _ []byte) ([]byte, error) {
	wasRunning := d.Daq.AnyRunning()
	d.Daq.StopAll()
	if wasRunning {
		d.Hooks.OnStopDaq()
	}
	d.Session.Disconnect()
	return nil, nil
}

func cmdGetStatus(d *Dispatcher, _ []byte) ([]byte, error) {
	var status uint8
	if d.Daq.AnyRunning() {
		status |= StatusDaqRunning
	}
	body := make([]byte, 5)
	body[0] = status
	// body[1] reserved, body[2] current resource protection status (none)
	putLE16(body[3:5], 0) // session configuration id
	return body, nil
}

func cmdSynch(d *Dispatcher, _ []byte) ([]byte, error) { return nil, nil }

func cmdGetCommModeInfo(d *Dispatcher, _ []byte) ([]byte, error) {
	// Declares no interleaved command mode and a zero block-transfer
	// queue, so GET_ID/UPLOAD sequencing is unambiguous to the client.
	body := make([]byte, 5)
	return body, nil
}

func cmdSetRequest(d *Dispatcher, _ []byte) ([]byte, error) {
	// Store-cal-page / store-DAQ requests are acknowledged without
	// persisting anything: no non-volatile store backs this server, and
	// rejecting the command breaks common calibration tools' connect
	// handshake.
	d.Logger.Warn().Msg("SET_REQUEST: no non-volatile store backing this build")
	return nil, nil
}

func cmdAccessDenied(d *Dispatcher, _ []byte) ([]byte, error) {
	return nil, NewError(CodeAccessDenied)
}

func cmdUnknown(d *Dispatcher, _ []byte) ([]byte, error) {
	return nil, NewError(CodeCmdUnknown)
}

func cmdGetID(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, NewError(CodeCmdSyntax)
	}
	kind := a2l.Kind(payload[0])
	data, length, uploadable, err := a2l.Ident(d.A2L, kind)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 8, 8+len(data))
	if uploadable {
		body[0] = 1
		d.Session.SetMTA(uint8(addr.A2L), 0)
	}
	putLE32(body[4:8], uint32(length))
	body = append(body, data...)
	return body, nil
}

func cmdSetMTA(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 5 {
		return nil, NewError(CodeCmdSyntax)
	}
	d.Session.SetMTA(payload[0], le32(payload[1:5]))
	return nil, nil
}

func cmdUpload(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, NewError(CodeCmdSyntax)
	}
	n := int(payload[0])
	ext, address := d.Session.MTA()
	data, err := d.Resolve.Read(addr.Extension(ext), address, n, 0)
	if err != nil {
		return nil, err
	}
	d.Session.AdvanceMTA(uint32(n))
	return data, nil
}

func cmdShortUpload(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 6 {
		return nil, NewError(CodeCmdSyntax)
	}
	n := int(payload[0])
	ext := payload[1]
	address := le32(payload[2:6])
	return d.Resolve.Read(addr.Extension(ext), address, n, 0)
}

func cmdDownload(d *Dispatcher, payload []byte) ([]byte, error) {
	ext, address := d.Session.MTA()
	if err := d.Resolve.Write(addr.Extension(ext), address, payload, 0); err != nil {
		return nil, err
	}
	d.Session.AdvanceMTA(uint32(len(payload)))
	if addr.Extension(ext) == addr.APP {
		if err := d.Hooks.FlushPendingWrites(); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func cmdShortDownload(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 5 {
		return nil, NewError(CodeCmdSyntax)
	}
	address := le32(payload[0:4])
	ext := payload[4]
	data := payload[5:]
	if err := d.Resolve.Write(addr.Extension(ext), address, data, 0); err != nil {
		return nil, err
	}
	if addr.Extension(ext) == addr.APP {
		if err := d.Hooks.FlushPendingWrites(); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func cmdBuildChecksum(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 9 {
		return nil, NewError(CodeCmdSyntax)
	}
	seg := int(payload[0])
	offset := int(le32(payload[1:5]))
	length := int(le32(payload[5:9]))
	sum, err := d.Cal.BuildChecksum(seg, offset, length)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 8)
	body[0] = 0x09 // XCP_ADD_44 checksum type
	putLE32(body[4:8], sum)
	return body, nil
}

func cmdUserCmd(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, NewError(CodeCmdSyntax)
	}
	switch payload[0] {
	case UserCmdBeginTransaction:
		return nil, d.Cal.BeginTransaction()
	case UserCmdEndTransaction:
		return nil, d.Cal.EndTransaction()
	default:
		return nil, NewError(CodeSubCmdUnknown)
	}
}

func cmdSetCalPage(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 3 {
		return nil, NewError(CodeCmdSyntax)
	}
	seg, page := int(payload[0]), int(payload[1])
	return nil, d.Cal.SetCalPage(seg, page)
}

func cmdGetCalPage(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, NewError(CodeCmdSyntax)
	}
	page, err := d.Cal.GetCalPage(int(payload[0]))
	if err != nil {
		return nil, err
	}
	return []byte{byte(page)}, nil
}

func cmdCopyCalPage(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 3 {
		return nil, NewError(CodeCmdSyntax)
	}
	seg, src, dst := int(payload[0]), int(payload[1]), int(payload[2])
	return nil, d.Cal.CopyCalPage(seg, src, dst)
}

func cmdAllocDaq(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, NewError(CodeCmdSyntax)
	}
	return nil, d.Daq.AllocDaq(int(le16(payload[0:2])))
}

func cmdFreeDaq(d *Dispatcher, _ []byte) ([]byte, error) {
	return nil, d.Daq.FreeDaq()
}

func cmdAllocOdt(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 3 {
		return nil, NewError(CodeCmdSyntax)
	}
	daqList := int(le16(payload[0:2]))
	count := int(payload[2])
	return nil, d.Daq.AllocOdt(daqList, count)
}

func cmdAllocOdtEntry(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, NewError(CodeCmdSyntax)
	}
	daqList := int(le16(payload[0:2]))
	odt := int(payload[2])
	count := int(payload[3])
	return nil, d.Daq.AllocOdtEntry(daqList, odt, count)
}

func cmdSetDaqPtr(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, NewError(CodeCmdSyntax)
	}
	daqList := int(le16(payload[0:2]))
	odt := int(payload[2])
	entry := int(payload[3])
	return nil, d.Daq.SetDaqPtr(daqList, odt, entry)
}

func cmdWriteDaq(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 7 {
		return nil, NewError(CodeCmdSyntax)
	}
	size := int(payload[1])
	ext := addr.Extension(payload[2])
	address := le32(payload[3:7])
	return nil, d.Daq.WriteDaq(ext, size, address)
}

func cmdWriteDaqMultiple(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, NewError(CodeCmdSyntax)
	}
	count := int(payload[0])
	const entryWidth = 7 // bitoffset(1) + size(1) + ext(1) + addr(4)
	if len(payload) < 1+count*entryWidth {
		return nil, NewError(CodeCmdSyntax)
	}
	entries := make([]daq.OdtEntry, count)
	for i := 0; i < count; i++ {
		off := 1 + i*entryWidth
		entries[i] = daq.OdtEntry{
			BitOffset: payload[off],
			Size:      int(payload[off+1]),
			Ext:       addr.Extension(payload[off+2]),
			Addr:      le32(payload[off+3 : off+7]),
		}
	}
	return nil, d.Daq.WriteDaqMultiple(entries)
}

func cmdSetDaqListMode(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 6 {
		return nil, NewError(CodeCmdSyntax)
	}
	modeFlags := payload[0]
	daqList := int(le16(payload[1:3]))
	eventID := le16(payload[3:5])
	priority := payload[5]

	dir := daq.DirDAQ
	if modeFlags&0x01 != 0 {
		dir = daq.DirSTIM
	}
	timestamped := modeFlags&0x10 != 0
	if err := d.Daq.SetDaqListMode(daqList, eventID, dir, timestamped, priority); err != nil {
		return nil, err
	}
	d.Hooks.OnPrepareDaq()
	return nil, nil
}

func cmdGetDaqListMode(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, NewError(CodeCmdSyntax)
	}
	daqList := int(le16(payload[0:2]))
	eventID, dir, timestamped, priority, err := d.Daq.GetDaqListMode(daqList)
	if err != nil {
		return nil, err
	}
	var modeFlags uint8
	if dir == daq.DirSTIM {
		modeFlags |= 0x01
	}
	if timestamped {
		modeFlags |= 0x10
	}
	body := make([]byte, 6)
	body[0] = modeFlags
	putLE16(body[1:3], 0) // reserved
	putLE16(body[3:5], eventID)
	body[5] = priority
	return body, nil
}

func cmdStartStopDaqList(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 3 {
		return nil, NewError(CodeCmdSyntax)
	}
	start := payload[0] != 0
	daqList := int(le16(payload[1:3]))
	if err := d.Daq.StartStopDaqList(daqList, start); err != nil {
		return nil, err
	}
	if start {
		d.Hooks.OnStartDaq()
	} else {
		d.Hooks.OnStopDaq()
	}
	return []byte{0}, nil // first PID of the list's first ODT, reserved here
}

func cmdStartStopSynch(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, NewError(CodeCmdSyntax)
	}
	start := payload[0] == 1
	if err := d.Daq.StartStopSynch(start); err != nil {
		return nil, err
	}
	if start {
		d.Hooks.OnStartDaq()
	} else {
		d.Hooks.OnStopDaq()
	}
	return nil, nil
}

func cmdGetDaqClock(d *Dispatcher, _ []byte) ([]byte, error) {
	body := make([]byte, 4)
	putLE32(body, d.Clock.Now())
	return body, nil
}

func cmdTimeCorrelationProperties(d *Dispatcher, _ []byte) ([]byte, error) {
	body := make([]byte, 8)
	body[0] = 0 // free-running, no server clock sync triggers implemented
	putLE32(body[4:8], d.Clock.Now())
	return body, nil
}

func cmdGetDaqProcessorInfo(d *Dispatcher, _ []byte) ([]byte, error) {
	body := make([]byte, 8)
	body[0] = 0x01 // DAQ_CONFIG_TYPE: dynamic configuration (ALLOC_DAQ/ALLOC_ODT/ALLOC_ODT_ENTRY); no OVERLOAD indication
	putLE16(body[1:3], uint16(d.Daq.Events.Len()))
	body[3] = 1 // min DAQ list count
	body[4] = 0 // DAQ_KEY_BYTE: identifier field layout, fixed here
	return body, nil
}

func cmdGetDaqResolutionInfo(d *Dispatcher, _ []byte) ([]byte, error) {
	body := make([]byte, 7)
	body[0] = 1 // granularity ODT entry size, DAQ direction
	body[1] = byte(d.Session.MaxDTO())
	body[2] = 1 // granularity ODT entry size, STIM direction
	body[3] = byte(d.Session.MaxDTO())
	body[4] = 0x04 // timestamp size: DWORD
	putLE16(body[5:7], 1) // timestamp ticks per unit
	return body, nil
}

func cmdGetDaqEventInfo(d *Dispatcher, payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, NewError(CodeCmdSyntax)
	}
	idx := le16(payload[0:2])
	ev, ok := d.Daq.Events.Get(idx)
	if !ok {
		return nil, NewError(CodeOutOfRange)
	}
	body := make([]byte, 7, 7+len(ev.Name))
	body[0] = 0x04 // EVENT_CHANNEL_DAQ consistency bit
	body[1] = 1    // max DAQ list count for this event
	body[2] = byte(len(ev.Name))
	body[3] = 0 // event channel time cycle, unit-scaled
	body[4] = 0 // event channel time unit
	body[5] = ev.Priority
	body[6] = 0 // reserved
	body = append(body, []byte(ev.Name)...)
	return body, nil
}
