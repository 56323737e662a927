package sip

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Header is a single SIP header.
type Header interface {
	// Name returns header name.
	Name() string
	Value() string
	String() string
	// StringWrite is better way to reuse single buffer
	StringWrite(w io.StringWriter)

	headerClone() Header
}

type CopyHeader interface {
	headerClone() Header
}

func HeaderClone(h Header) Header {
	return h.headerClone()
}

// headers backs the HeaderTable ordered multimap described in
// SPEC_FULL.md C3: headerOrder preserves insertion order across all
// header names, and the typed pointers below are a fast path onto the
// first occurrence of a well-known header, refreshed on every mutation.
type headers struct {
	headerOrder []Header

	via           *ViaHeader
	from          *FromHeader
	to            *ToHeader
	callid        *CallIDHeader
	contact       *ContactHeader
	cseq          *CSeqHeader
	maxForwards   *MaxForwardsHeader
	contentLength *ContentLengthHeader
	contentType   *ContentTypeHeader
	route         *RouteHeader
	recordRoute   *RecordRouteHeader
}

func (hs *headers) String() string {
	buffer := strings.Builder{}
	hs.StringWrite(&buffer)
	return buffer.String()
}

func (hs *headers) StringWrite(buffer io.StringWriter) {
	for _, header := range hs.headerOrder {
		header.StringWrite(buffer)
		buffer.WriteString("\r\n")
	}
}

// AppendHeader implements put_back: the header is appended after every
// existing header, including others of the same name.
func (hs *headers) AppendHeader(header Header) {
	hs.headerOrder = append(hs.headerOrder, header)
	hs.refreshFastPathFront(header)
}

// PrependHeader implements put_front for each header passed, preserving
// the relative order of the given headers at the front of the table.
func (hs *headers) PrependHeader(hdrs ...Header) {
	offset := len(hdrs)
	newOrder := make([]Header, len(hs.headerOrder)+offset)
	copy(newOrder, hdrs)
	copy(newOrder[offset:], hs.headerOrder)
	hs.headerOrder = newOrder
	hs.rebuildFastPath()
}

func (hs *headers) AppendHeaderAfter(header Header, name string) {
	ind := -1
	for i, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == HeaderToLower(name) {
			ind = i
		}
	}

	if ind < 0 {
		hs.AppendHeader(header)
		return
	}

	newOrder := make([]Header, 0, len(hs.headerOrder)+1)
	newOrder = append(newOrder, hs.headerOrder[:ind+1]...)
	newOrder = append(newOrder, header)
	newOrder = append(newOrder, hs.headerOrder[ind+1:]...)
	hs.headerOrder = newOrder
	hs.rebuildFastPath()
}

func (hs *headers) ReplaceHeader(header Header) {
	nameLower := HeaderToLower(header.Name())
	for i, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			hs.headerOrder[i] = header
			hs.refreshFastPath(header)
			return
		}
	}
	hs.AppendHeader(header)
}

// Headers returns all headers in wire order.
func (hs *headers) Headers() []Header {
	return hs.headerOrder
}

func (hs *headers) GetHeaders(name string) []Header {
	var hds []Header
	nameLower := HeaderToLower(name)
	for _, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			hds = append(hds, h)
		}
	}
	return hds
}

// GetHeader returns the first header with the given name, or nil.
func (hs *headers) GetHeader(name string) Header {
	return hs.getHeader(HeaderToLower(name))
}

func (hs *headers) getHeader(nameLower string) Header {
	for _, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			return h
		}
	}
	return nil
}

// RemoveHeader implements delete: drops every header with the given name.
func (hs *headers) RemoveHeader(name string) {
	nameLower := HeaderToLower(name)
	filtered := hs.headerOrder[:0]
	for _, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			continue
		}
		filtered = append(filtered, h)
	}
	hs.headerOrder = filtered
	hs.rebuildFastPath()
}

// CloneHeaders returns all cloned headers in slice, preserving order.
func (hs *headers) CloneHeaders() []Header {
	hdrs := make([]Header, 0, len(hs.headerOrder))
	for _, h := range hs.headerOrder {
		hdrs = append(hdrs, h.headerClone())
	}
	return hdrs
}

func (hs *headers) refreshFastPathFront(header Header) {
	// Only set the fast pointer if no earlier occurrence already claimed it.
	switch m := header.(type) {
	case *ViaHeader:
		if hs.via == nil {
			hs.via = m
		}
	case *FromHeader:
		if hs.from == nil {
			hs.from = m
		}
	case *ToHeader:
		if hs.to == nil {
			hs.to = m
		}
	case *CallIDHeader:
		if hs.callid == nil {
			hs.callid = m
		}
	case *CSeqHeader:
		if hs.cseq == nil {
			hs.cseq = m
		}
	case *MaxForwardsHeader:
		if hs.maxForwards == nil {
			hs.maxForwards = m
		}
	case *ContactHeader:
		if hs.contact == nil {
			hs.contact = m
		}
	case *ContentLengthHeader:
		if hs.contentLength == nil {
			hs.contentLength = m
		}
	case *ContentTypeHeader:
		if hs.contentType == nil {
			hs.contentType = m
		}
	case *RouteHeader:
		if hs.route == nil {
			hs.route = m
		}
	case *RecordRouteHeader:
		if hs.recordRoute == nil {
			hs.recordRoute = m
		}
	}
}

func (hs *headers) refreshFastPath(header Header) {
	switch m := header.(type) {
	case *ViaHeader:
		hs.via = m
	case *FromHeader:
		hs.from = m
	case *ToHeader:
		hs.to = m
	case *CallIDHeader:
		hs.callid = m
	case *CSeqHeader:
		hs.cseq = m
	case *MaxForwardsHeader:
		hs.maxForwards = m
	case *ContactHeader:
		hs.contact = m
	case *ContentLengthHeader:
		hs.contentLength = m
	case *ContentTypeHeader:
		hs.contentType = m
	case *RouteHeader:
		hs.route = m
	case *RecordRouteHeader:
		hs.recordRoute = m
	}
}

func (hs *headers) rebuildFastPath() {
	hs.via = nil
	hs.from = nil
	hs.to = nil
	hs.callid = nil
	hs.cseq = nil
	hs.maxForwards = nil
	hs.contact = nil
	hs.contentLength = nil
	hs.contentType = nil
	hs.route = nil
	hs.recordRoute = nil
	for _, h := range hs.headerOrder {
		hs.refreshFastPathFront(h)
	}
}

func (hs *headers) CallID() *CallIDHeader             { return hs.callid }
func (hs *headers) Via() *ViaHeader                   { return hs.via }
func (hs *headers) From() *FromHeader                 { return hs.from }
func (hs *headers) To() *ToHeader                     { return hs.to }
func (hs *headers) CSeq() *CSeqHeader                 { return hs.cseq }
func (hs *headers) MaxForwards() *MaxForwardsHeader   { return hs.maxForwards }
func (hs *headers) ContentLength() *ContentLengthHeader { return hs.contentLength }
func (hs *headers) ContentType() *ContentTypeHeader   { return hs.contentType }
func (hs *headers) Contact() *ContactHeader           { return hs.contact }
func (hs *headers) Route() *RouteHeader               { return hs.route }
func (hs *headers) RecordRoute() *RecordRouteHeader   { return hs.recordRoute }

// Encapsulates a header not natively modeled, preserved as a raw string
// per the closed-variant-plus-raw-fallback rule in SPEC_FULL.md C4.
type GenericHeader struct {
	HeaderName string
	Contents   string
}

func NewHeader(name, value string) *GenericHeader {
	return &GenericHeader{HeaderName: name, Contents: value}
}

func (h *GenericHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *GenericHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	buffer.WriteString(h.Value())
}

func (h *GenericHeader) Name() string  { return h.HeaderName }
func (h *GenericHeader) Value() string { return h.Contents }

func (h *GenericHeader) headerClone() Header {
	if h == nil {
		return (*GenericHeader)(nil)
	}
	return &GenericHeader{HeaderName: h.HeaderName, Contents: h.Contents}
}

// ToHeader introduces SIP 'To' header.
type ToHeader struct {
	DisplayName string
	Address     Uri
	Params      HeaderParams
}

func (h *ToHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *ToHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	h.ValueStringWrite(buffer)
}

func (h *ToHeader) Name() string { return "To" }

func (h *ToHeader) Value() string {
	var buffer strings.Builder
	h.ValueStringWrite(&buffer)
	return buffer.String()
}

func (h *ToHeader) ValueStringWrite(buffer io.StringWriter) {
	if h.DisplayName != "" {
		buffer.WriteString("\"")
		buffer.WriteString(h.DisplayName)
		buffer.WriteString("\" ")
	}
	buffer.WriteString("<")
	h.Address.StringWrite(buffer)
	buffer.WriteString(">")

	if h.Params != nil && h.Params.Length() > 0 {
		buffer.WriteString(";")
		h.Params.ToStringWrite(';', buffer)
	}
}

// Tag returns the To tag param, or "" if absent.
func (h *ToHeader) Tag() string {
	if h == nil || h.Params == nil {
		return ""
	}
	return h.Params.GetOr("tag", "")
}

func (h *ToHeader) headerClone() Header {
	if h == nil {
		return (*ToHeader)(nil)
	}
	newTo := &ToHeader{DisplayName: h.DisplayName, Address: *h.Address.Clone()}
	if h.Params != nil {
		newTo.Params = h.Params.Clone()
	}
	return newTo
}

type FromHeader struct {
	DisplayName string
	Address     Uri
	Params      HeaderParams
}

func (h *FromHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *FromHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	h.ValueStringWrite(buffer)
}

func (h *FromHeader) Name() string { return "From" }

func (h *FromHeader) Value() string {
	var buffer strings.Builder
	h.ValueStringWrite(&buffer)
	return buffer.String()
}

func (h *FromHeader) ValueStringWrite(buffer io.StringWriter) {
	if h.DisplayName != "" {
		buffer.WriteString("\"")
		buffer.WriteString(h.DisplayName)
		buffer.WriteString("\" ")
	}
	buffer.WriteString("<")
	h.Address.StringWrite(buffer)
	buffer.WriteString(">")

	if h.Params != nil && h.Params.Length() > 0 {
		buffer.WriteString(";")
		h.Params.ToStringWrite(';', buffer)
	}
}

// Tag returns the From tag param, or "" if absent.
func (h *FromHeader) Tag() string {
	if h == nil || h.Params == nil {
		return ""
	}
	return h.Params.GetOr("tag", "")
}

func (h *FromHeader) headerClone() Header {
	if h == nil {
		return (*FromHeader)(nil)
	}
	newFrom := &FromHeader{DisplayName: h.DisplayName, Address: *h.Address.Clone()}
	if h.Params != nil {
		newFrom.Params = h.Params.Clone()
	}
	return newFrom
}

type ContactHeader struct {
	DisplayName string
	Address     Uri
	Params      HeaderParams
	// Wildcard marks the literal Contact: * form (RFC 3261 20.10).
	Wildcard bool
	Next     *ContactHeader
}

func (h *ContactHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *ContactHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	h.ValueStringWrite(buffer)
}

func (h *ContactHeader) Name() string { return "Contact" }

func (h *ContactHeader) Value() string {
	var buffer strings.Builder
	h.ValueStringWrite(&buffer)
	return buffer.String()
}

func (h *ContactHeader) ValueStringWrite(buffer io.StringWriter) {
	for hop := h; hop != nil; hop = hop.Next {
		hop.valueWrite(buffer)
		if hop.Next != nil {
			buffer.WriteString(", ")
		}
	}
}

func (h *ContactHeader) valueWrite(buffer io.StringWriter) {
	if h.Wildcard {
		buffer.WriteString("*")
		return
	}

	if h.DisplayName != "" {
		buffer.WriteString("\"")
		buffer.WriteString(h.DisplayName)
		buffer.WriteString("\" ")
	}
	buffer.WriteString("<")
	h.Address.StringWrite(buffer)
	buffer.WriteString(">")

	if h.Params != nil && h.Params.Length() > 0 {
		buffer.WriteString(";")
		h.Params.ToStringWrite(';', buffer)
	}
}

func (h *ContactHeader) headerClone() Header {
	return h.Clone()
}

func (h *ContactHeader) Clone() *ContactHeader {
	if h == nil {
		return nil
	}
	newCnt := h.cloneFirst()
	newNext := newCnt
	for hop := h.Next; hop != nil; hop = hop.Next {
		newNext.Next = hop.cloneFirst()
		newNext = newNext.Next
	}
	return newCnt
}

func (h *ContactHeader) cloneFirst() *ContactHeader {
	if h == nil {
		return nil
	}
	newCnt := &ContactHeader{
		DisplayName: h.DisplayName,
		Address:     *h.Address.Clone(),
		Wildcard:    h.Wildcard,
	}
	if h.Params != nil {
		newCnt.Params = h.Params.Clone()
	}
	return newCnt
}

// CallIDHeader — 'Call-ID' header.
type CallIDHeader string

func (h *CallIDHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *CallIDHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	buffer.WriteString(h.Value())
}

func (h *CallIDHeader) Name() string  { return "Call-ID" }
func (h *CallIDHeader) Value() string { return string(*h) }

func (h *CallIDHeader) headerClone() Header {
	if h == nil {
		return (*CallIDHeader)(nil)
	}
	cp := *h
	return &cp
}

type CSeqHeader struct {
	SeqNo      uint32
	MethodName RequestMethod
}

func (h *CSeqHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *CSeqHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	h.ValueStringWrite(buffer)
}

func (h *CSeqHeader) Name() string { return "CSeq" }

func (h *CSeqHeader) Value() string {
	return fmt.Sprintf("%d %s", h.SeqNo, h.MethodName)
}

func (h *CSeqHeader) ValueStringWrite(buffer io.StringWriter) {
	buffer.WriteString(strconv.Itoa(int(h.SeqNo)))
	buffer.WriteString(" ")
	buffer.WriteString(string(h.MethodName))
}

func (h *CSeqHeader) headerClone() Header {
	if h == nil {
		return (*CSeqHeader)(nil)
	}
	return &CSeqHeader{SeqNo: h.SeqNo, MethodName: h.MethodName}
}

type MaxForwardsHeader uint32

func (h *MaxForwardsHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *MaxForwardsHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	buffer.WriteString(h.Value())
}

func (h *MaxForwardsHeader) Name() string  { return "Max-Forwards" }
func (h *MaxForwardsHeader) Value() string { return strconv.Itoa(int(*h)) }

func (h *MaxForwardsHeader) headerClone() Header {
	if h == nil {
		return (*MaxForwardsHeader)(nil)
	}
	cp := *h
	return &cp
}

type ExpiresHeader uint32

func (h *ExpiresHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *ExpiresHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	buffer.WriteString(h.Value())
}

func (h *ExpiresHeader) Name() string  { return "Expires" }
func (h *ExpiresHeader) Value() string { return strconv.Itoa(int(*h)) }

func (h *ExpiresHeader) headerClone() Header {
	if h == nil {
		return (*ExpiresHeader)(nil)
	}
	cp := *h
	return &cp
}

type ContentLengthHeader uint32

func (h *ContentLengthHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *ContentLengthHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	buffer.WriteString(h.Value())
}

func (h *ContentLengthHeader) Name() string  { return "Content-Length" }
func (h *ContentLengthHeader) Value() string { return strconv.Itoa(int(*h)) }

func (h *ContentLengthHeader) headerClone() Header {
	if h == nil {
		return (*ContentLengthHeader)(nil)
	}
	cp := *h
	return &cp
}

// ViaHeader is one Via hop; Next can chain further hops that are written
// comma-joined on the same header line. The parser does not build such
// chains: it returns each comma-separated Via value as its own ViaHeader.
type ViaHeader struct {
	ProtocolName    string
	ProtocolVersion string
	Transport       string
	Host            string
	Port            int
	Params          HeaderParams
	Next            *ViaHeader
}

func (hop *ViaHeader) SentBy() string {
	var buf bytes.Buffer
	buf.WriteString(hop.Host)
	if hop.Port > 0 {
		fmt.Fprintf(&buf, ":%d", hop.Port)
	}
	return buf.String()
}

func (h *ViaHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *ViaHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	h.ValueStringWrite(buffer)
}

func (h *ViaHeader) Name() string { return "Via" }

func (h *ViaHeader) Value() string {
	var buffer bytes.Buffer
	h.ValueStringWrite(&buffer)
	return buffer.String()
}

func (h *ViaHeader) ValueStringWrite(buffer io.StringWriter) {
	for hop := h; hop != nil; hop = hop.Next {
		buffer.WriteString(hop.ProtocolName)
		buffer.WriteString("/")
		buffer.WriteString(hop.ProtocolVersion)
		buffer.WriteString("/")
		buffer.WriteString(hop.Transport)
		buffer.WriteString(" ")
		buffer.WriteString(hop.Host)

		if hop.Port > 0 {
			buffer.WriteString(":")
			buffer.WriteString(strconv.Itoa(hop.Port))
		}

		if hop.Params != nil && hop.Params.Length() > 0 {
			buffer.WriteString(";")
			hop.Params.ToStringWrite(';', buffer)
		}

		if hop.Next != nil {
			buffer.WriteString(", ")
		}
	}
}

func (h *ViaHeader) headerClone() Header {
	return h.Clone()
}

func (h *ViaHeader) Clone() *ViaHeader {
	if h == nil {
		return nil
	}
	newHop := h.cloneFirst()
	newNext := newHop
	for next := h.Next; next != nil; next = next.Next {
		newNext.Next = next.cloneFirst()
		newNext = newNext.Next
	}
	return newHop
}

func (h *ViaHeader) cloneFirst() *ViaHeader {
	if h == nil {
		return nil
	}
	newHop := &ViaHeader{
		ProtocolName:    h.ProtocolName,
		ProtocolVersion: h.ProtocolVersion,
		Transport:       h.Transport,
		Host:            h.Host,
		Port:            h.Port,
	}
	if h.Params != nil {
		newHop.Params = h.Params.Clone()
	}
	return newHop
}

type ContentTypeHeader string

func (h *ContentTypeHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *ContentTypeHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	buffer.WriteString(h.Value())
}

func (h *ContentTypeHeader) Name() string  { return "Content-Type" }
func (h *ContentTypeHeader) Value() string { return string(*h) }

func (h *ContentTypeHeader) headerClone() Header {
	if h == nil {
		return (*ContentTypeHeader)(nil)
	}
	cp := *h
	return &cp
}

type RouteHeader struct {
	Address Uri
	Next    *RouteHeader
}

func (h *RouteHeader) Name() string { return "Route" }

func (h *RouteHeader) Value() string {
	var buffer bytes.Buffer
	h.ValueStringWrite(&buffer)
	return buffer.String()
}

func (h *RouteHeader) ValueStringWrite(buffer io.StringWriter) {
	for hop := h; hop != nil; hop = hop.Next {
		buffer.WriteString("<")
		hop.Address.StringWrite(buffer)
		buffer.WriteString(">")
		if hop.Next != nil {
			buffer.WriteString(", ")
		}
	}
}

func (h *RouteHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *RouteHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	h.ValueStringWrite(buffer)
}

func (h *RouteHeader) headerClone() Header {
	return h.Clone()
}

func (h *RouteHeader) Clone() *RouteHeader {
	if h == nil {
		return nil
	}
	newRoute := h.cloneFirst()
	newNext := newRoute
	for hop := h.Next; hop != nil; hop = hop.Next {
		newNext.Next = hop.cloneFirst()
		newNext = newNext.Next
	}
	return newRoute
}

func (h *RouteHeader) cloneFirst() *RouteHeader {
	if h == nil {
		return nil
	}
	return &RouteHeader{Address: *h.Address.Clone()}
}

type RecordRouteHeader struct {
	Address Uri
	Next    *RecordRouteHeader
}

func (h *RecordRouteHeader) Name() string { return "Record-Route" }

func (h *RecordRouteHeader) Value() string {
	var buffer bytes.Buffer
	h.ValueStringWrite(&buffer)
	return buffer.String()
}

func (h *RecordRouteHeader) ValueStringWrite(buffer io.StringWriter) {
	for hop := h; hop != nil; hop = hop.Next {
		buffer.WriteString("<")
		hop.Address.StringWrite(buffer)
		buffer.WriteString(">")
		if hop.Next != nil {
			buffer.WriteString(", ")
		}
	}
}

func (h *RecordRouteHeader) String() string {
	var buffer strings.Builder
	h.StringWrite(&buffer)
	return buffer.String()
}

func (h *RecordRouteHeader) StringWrite(buffer io.StringWriter) {
	buffer.WriteString(h.Name())
	buffer.WriteString(": ")
	h.ValueStringWrite(buffer)
}

func (h *RecordRouteHeader) headerClone() Header {
	return h.Clone()
}

func (h *RecordRouteHeader) Clone() *RecordRouteHeader {
	if h == nil {
		return nil
	}
	newRoute := h.cloneFirst()
	newNext := newRoute
	for hop := h.Next; hop != nil; hop = hop.Next {
		newNext.Next = hop.cloneFirst()
		newNext = newNext.Next
	}
	return newRoute
}

func (h *RecordRouteHeader) cloneFirst() *RecordRouteHeader {
	if h == nil {
		return nil
	}
	return &RecordRouteHeader{Address: *h.Address.Clone()}
}

// CopyHeaders copies all headers of one name from one message to
// another, appending to whatever is already there (put_back semantics).
func CopyHeaders(name string, from, to Message) {
	for _, h := range from.GetHeaders(name) {
		to.AppendHeader(h.headerClone())
	}
}
