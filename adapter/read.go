package adapter

import (
	"context"
	"time"

	"github.com/ruteri/storage-adapters/interfaces"
)

// Remove deletes the file's copy from the backend and returns the backend's
// result unchanged.
func (a *StorageAdapter) Remove(ctx context.Context, file interfaces.LogicalFile, opts RemoveOptions) (bool, error) {
	return await(a.removeOp(ctx, file, opts))
}

// RemoveAsync is the non-blocking form of Remove.
func (a *StorageAdapter) RemoveAsync(ctx context.Context, file interfaces.LogicalFile, opts RemoveOptions, done Callback[bool]) {
	dispatch(a.removeOp(ctx, file, opts), done)
}

// GetBuffer reads the full payload of the file's copy.
func (a *StorageAdapter) GetBuffer(ctx context.Context, file interfaces.LogicalFile) ([]byte, error) {
	return await(a.getBufferOp(ctx, file))
}

// GetBufferAsync is the non-blocking form of GetBuffer.
func (a *StorageAdapter) GetBufferAsync(ctx context.Context, file interfaces.LogicalFile, done Callback[[]byte]) {
	dispatch(a.getBufferOp(ctx, file), done)
}

// GetBytes reads bytes [start, end) of the file's copy. end is clamped to the
// recorded copy size when the size is known.
func (a *RangeStorageAdapter) GetBytes(ctx context.Context, file interfaces.LogicalFile, start, end int64) ([]byte, error) {
	return await(a.getBytesOp(ctx, file, start, end))
}

// GetBytesAsync is the non-blocking form of GetBytes.
func (a *RangeStorageAdapter) GetBytesAsync(ctx context.Context, file interfaces.LogicalFile, start, end int64, done Callback[[]byte]) {
	dispatch(a.getBytesOp(ctx, file, start, end), done)
}

func (a *StorageAdapter) removeOp(ctx context.Context, file interfaces.LogicalFile, opts RemoveOptions) operation[bool] {
	return func(done Callback[bool]) {
		start := time.Now()
		if err := a.checkFile(file, opRemove); err != nil {
			a.observe(opRemove, "", start, err)
			done(false, err)
			return
		}

		rec, err := a.copyKey(file, opRemove)
		if err != nil {
			if opts.IgnoreMissing {
				a.observe(opRemove, "", start, nil)
				done(true, nil)
				return
			}
			a.observe(opRemove, "", start, err)
			done(false, err)
			return
		}

		removed, err := a.backend.Del(ctx, rec.Key)
		a.observe(opRemove, rec.Key, start, err)
		done(removed, err)
	}
}

func (a *StorageAdapter) getBufferOp(ctx context.Context, file interfaces.LogicalFile) operation[[]byte] {
	return func(done Callback[[]byte]) {
		start := time.Now()
		if err := a.checkFile(file, opGetBuffer); err != nil {
			a.observe(opGetBuffer, "", start, err)
			done(nil, err)
			return
		}

		rec, err := a.copyKey(file, opGetBuffer)
		if err != nil {
			a.observe(opGetBuffer, "", start, err)
			done(nil, err)
			return
		}

		data, err := a.backend.Get(ctx, rec.Key)
		a.observe(opGetBuffer, rec.Key, start, err)
		done(data, err)
	}
}

func (a *RangeStorageAdapter) getBytesOp(ctx context.Context, file interfaces.LogicalFile, start, end int64) operation[[]byte] {
	return func(done Callback[[]byte]) {
		began := time.Now()
		if err := a.checkFile(file, opGetBytes); err != nil {
			a.observe(opGetBytes, "", began, err)
			done(nil, err)
			return
		}

		rec, err := a.copyKey(file, opGetBytes)
		if err != nil {
			a.observe(opGetBytes, "", began, err)
			done(nil, err)
			return
		}

		if rec.Size > 0 && end > rec.Size {
			end = rec.Size
		}

		data, err := a.ranger.GetBytes(ctx, rec.Key, start, end)
		a.observe(opGetBytes, rec.Key, began, err)
		done(data, err)
	}
}
