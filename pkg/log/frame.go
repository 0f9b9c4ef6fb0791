package log

import "github.com/avbridge/avdecc-go/pkg/protocol"

// AdpFrame builds a FrameEvent for an ADP frame.
func AdpFrame(pdu *protocol.Adpdu) *FrameEvent {
	f := &FrameEvent{
		MessageType: pdu.MessageType.String(),
		SrcAddress:  pdu.SrcAddress.String(),
		DestAddress: pdu.DestAddress.String(),
	}
	f.setData(pdu)
	return f
}

// AecpFrame builds a FrameEvent for an AECP frame.
func AecpFrame(pdu *protocol.Aecpdu) *FrameEvent {
	seq := uint16(pdu.SequenceID)
	f := &FrameEvent{
		MessageType: pdu.MessageType.String(),
		SequenceID:  &seq,
		SrcAddress:  pdu.SrcAddress.String(),
		DestAddress: pdu.DestAddress.String(),
	}
	if pdu.IsResponse() {
		f.Status = pdu.Status.String()
	}
	f.setData(pdu)
	return f
}

// AcmpFrame builds a FrameEvent for an ACMP frame.
func AcmpFrame(pdu *protocol.Acmpdu) *FrameEvent {
	seq := uint16(pdu.SequenceID)
	f := &FrameEvent{
		MessageType: pdu.MessageType.String(),
		SequenceID:  &seq,
		SrcAddress:  pdu.SrcAddress.String(),
		DestAddress: pdu.DestAddress.String(),
	}
	if pdu.IsResponse() {
		f.Status = pdu.Status.String()
	}
	f.setData(pdu)
	return f
}

func (f *FrameEvent) setData(pdu any) {
	data, err := logEncMode.Marshal(pdu)
	if err != nil {
		return
	}
	if len(data) > MaxFrameData {
		data = data[:MaxFrameData]
		f.Truncated = true
	}
	f.Data = data
}
