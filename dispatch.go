package cycle

import (
	"pipelined.dev/cycle/metric"
	"pipelined.dev/cycle/signal"
	"pipelined.dev/cycle/stream"
)

// dispatch executes operation i and returns the number of samples it
// produced or moved.
func (p *Pipeline) dispatch(i int, op *Operation, cycle uint64, iteration int) int {
	switch op.kind {
	case KindCapture:
		return p.runCapture(i, op, cycle, iteration)
	case KindTransform:
		return p.runTransform(i, op, cycle)
	case KindRoute:
		return p.runRoute(i, op, cycle)
	case KindLoad:
		return p.runLoad(i, op, cycle)
	case KindFuse:
		return p.runFuse(i, op, cycle)
	case KindDispatch:
		return p.runDispatch(i, op, cycle)
	case KindModify:
		p.runModify(i, op, cycle)
	}
	return 0
}

func (p *Pipeline) runCapture(i int, op *Operation, cycle uint64, iteration int) int {
	c := op.capture
	fresh := c.extract()
	merged, ok := c.merge(p.slots[i].data, fresh, p.opLogger(i, cycle))
	if !ok {
		return 0
	}
	p.store(i, merged, cycle)
	if c.onDataReady != nil {
		p.call("data ready", cycle, func() { c.onDataReady(merged, cycle+uint64(iteration)) })
	}
	// a route right after the capture receives fresh samples immediately
	if j := i + 1; j < len(p.ops) {
		if next := p.ops[j]; next.kind == KindRoute && next.sourceStream == nil && p.gates[j] && cycle%next.interval == 0 {
			p.write(j, next, fresh, cycle)
			p.states[j] = Consumed
			p.states[i] = Consumed
		}
	}
	return fresh.Len()
}

func (p *Pipeline) runTransform(i int, op *Operation, cycle uint64) int {
	in := p.input(i)
	p.consume(i)
	out := op.transform(in, cycle)
	p.store(i, out, cycle)
	p.writeBack(i, out, cycle)
	return out.Len()
}

// writeBack overwrites the source buffer of the nearest preceding capture
// with a transform result, so the next extraction starts from it.
func (p *Pipeline) writeBack(i int, data signal.Variant, cycle uint64) {
	for j := i - 1; j >= 0; j-- {
		if p.ops[j].kind != KindCapture {
			continue
		}
		samples, err := data.Float64()
		if err != nil {
			p.opLogger(i, cycle).WithError(err).Debug("transform result not written back")
			return
		}
		p.ops[j].capture.source.Overwrite(samples)
		return
	}
}

func (p *Pipeline) runRoute(i int, op *Operation, cycle uint64) int {
	var data signal.Variant
	if op.sourceStream != nil {
		data = readStream(op.sourceStream, op.sourceChannel, op.length)
	} else {
		data = p.input(i)
		p.consume(i)
	}
	return p.write(i, op, data, cycle)
}

func (p *Pipeline) runLoad(i int, op *Operation, cycle uint64) int {
	if !op.seeked {
		op.sourceStream.Seek(op.startFrame)
		op.seeked = true
	}
	length := op.length
	if length == 0 {
		length = op.targetBuffer.Size()
	}
	data := readStream(op.sourceStream, op.sourceChannel, length)
	if data.IsEmpty() {
		return 0
	}
	p.write(i, op, data, cycle)
	p.store(i, data, cycle)
	return data.Len()
}

func (p *Pipeline) runFuse(i int, op *Operation, cycle uint64) int {
	sources := make([]signal.Variant, 0, len(op.fuseBuffers)+len(op.fuseStreams))
	for _, b := range op.fuseBuffers {
		sources = append(sources, signal.Float64s(b.Snapshot()))
	}
	for k, s := range op.fuseStreams {
		sources = append(sources, readStream(s, op.fuseChannels[k], op.length))
	}
	out := op.fuse(sources, cycle)
	p.write(i, op, out, cycle)
	p.store(i, out, cycle)
	return out.Len()
}

func (p *Pipeline) runDispatch(i int, op *Operation, cycle uint64) int {
	in := p.input(i)
	p.consume(i)
	op.handler(in, cycle)
	return in.Len()
}

func (p *Pipeline) runModify(i int, op *Operation, cycle uint64) {
	switch {
	case op.detached:
		return
	case op.handle == nil:
		h, err := p.manager.AttachInPlace(op.modifier, op.targetBuffer, op.token)
		if err != nil {
			p.opLogger(i, cycle).WithError(err).Warn("attach failed")
			metric.Fail(op.kind)
			return
		}
		op.handle = &h
		op.attachedAt = cycle
		if op.lifetime == 0 && op.streaming && p.maxCycles > 0 {
			op.lifetime = p.maxCycles - p.executed
		}
	case op.expired(cycle):
		p.detach(op)
	}
}

// expired reports whether an attached modifier outlived its lifetime.
func (op *Operation) expired(cycle uint64) bool {
	return op.handle != nil && op.lifetime > 0 && cycle >= op.attachedAt+op.lifetime
}

// detach removes an attached modifier. It's never attached again.
func (p *Pipeline) detach(op *Operation) {
	if op.handle == nil || op.detached {
		return
	}
	if err := p.manager.Detach(*op.handle, op.targetBuffer); err != nil {
		p.logger.WithError(err).Warn("detach failed")
	}
	op.handle = nil
	op.detached = true
}

// write sends data to the target buffer or stream of op. Data of other
// kinds than float64 is dropped.
func (p *Pipeline) write(i int, op *Operation, data signal.Variant, cycle uint64) int {
	if data.IsEmpty() {
		return 0
	}
	samples, err := data.Float64()
	if err != nil {
		p.opLogger(i, cycle).WithError(err).Warn("write skipped")
		metric.Fail(op.kind)
		return 0
	}
	switch {
	case op.targetBuffer != nil:
		op.targetBuffer.Write(samples)
	case op.targetStream != nil:
		if _, err := op.targetStream.Append(samples, op.targetChannel); err != nil {
			p.opLogger(i, cycle).WithError(err).Warn("stream write failed")
			metric.Fail(op.kind)
			return 0
		}
	}
	return len(samples)
}

// consume marks the input of operation i consumed.
func (p *Pipeline) consume(i int) {
	if j := p.inputs[i]; j >= 0 && p.states[j] == Ready {
		p.states[j] = Consumed
	}
}

// readStream reads length frames of channel from the stream position,
// zero means all remaining.
func readStream(s *stream.Stream, channel, length int) signal.Variant {
	samples, err := s.ReadChannel(channel, length)
	if err != nil || len(samples) == 0 {
		return signal.Variant{}
	}
	return signal.Float64s(samples)
}
