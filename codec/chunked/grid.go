package chunked

// chunkExtent is one chunk's placement in the full array: the start
// index and extent per dimension. Edge chunks are clipped to the array
// bounds.
type chunkExtent struct {
	start  []int
	extent []int
}

func (c chunkExtent) volume() int {
	v := 1
	for _, e := range c.extent {
		v *= e
	}
	return v
}

// forEachChunk visits every chunk of the grid in row-major chunk order.
func forEachChunk(shape, chunks []int, fn func(chunkExtent) error) error {
	rank := len(shape)
	grid := make([]int, rank)
	for i := range shape {
		grid[i] = (shape[i] + chunks[i] - 1) / chunks[i]
	}

	cursor := make([]int, rank)
	for {
		ext := chunkExtent{start: make([]int, rank), extent: make([]int, rank)}
		for i := range cursor {
			ext.start[i] = cursor[i] * chunks[i]
			ext.extent[i] = min(chunks[i], shape[i]-ext.start[i])
		}
		if err := fn(ext); err != nil {
			return err
		}

		// Advance the odometer, last dimension fastest.
		i := rank - 1
		for ; i >= 0; i-- {
			cursor[i]++
			if cursor[i] < grid[i] {
				break
			}
			cursor[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

// gatherChunk copies one chunk's elements out of the full row-major
// byte buffer. Rows along the innermost dimension are contiguous and
// copied as runs.
func gatherChunk(raw []byte, shape []int, ext chunkExtent, elem int) []byte {
	out := make([]byte, ext.volume()*elem)
	pos := 0
	forEachRow(shape, ext, elem, func(srcOff, runBytes int) {
		copy(out[pos:pos+runBytes], raw[srcOff:srcOff+runBytes])
		pos += runBytes
	})
	return out
}

// scatterChunk is the inverse of gatherChunk.
func scatterChunk(raw []byte, shape []int, ext chunkExtent, elem int, chunkRaw []byte) {
	pos := 0
	forEachRow(shape, ext, elem, func(dstOff, runBytes int) {
		copy(raw[dstOff:dstOff+runBytes], chunkRaw[pos:pos+runBytes])
		pos += runBytes
	})
}

// forEachRow visits each innermost-dimension run of the chunk, giving
// the run's byte offset in the full buffer and its byte length.
func forEachRow(shape []int, ext chunkExtent, elem int, fn func(off, runBytes int)) {
	rank := len(shape)
	strides := make([]int, rank)
	s := 1
	for i := rank - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	runBytes := ext.extent[rank-1] * elem

	if rank == 1 {
		fn(ext.start[0]*elem, runBytes)
		return
	}

	cursor := make([]int, rank-1)
	for {
		off := ext.start[rank-1] * strides[rank-1]
		for i := 0; i < rank-1; i++ {
			off += (ext.start[i] + cursor[i]) * strides[i]
		}
		fn(off*elem, runBytes)

		i := rank - 2
		for ; i >= 0; i-- {
			cursor[i]++
			if cursor[i] < ext.extent[i] {
				break
			}
			cursor[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
