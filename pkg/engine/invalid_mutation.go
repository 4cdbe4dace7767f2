package engine

import (
	"context"
)

type invalidUpdateMutation struct {
	err error
}

func newInvalidUpdateMutation(err error) UpdateMutation {
	return &invalidUpdateMutation{err: err}
}

func (m *invalidUpdateMutation) SetProperty(ref FieldRef, value any) UpdateMutation {
	return m
}

func (m *invalidUpdateMutation) Where(ref FieldRef, value any) UpdateMutation {
	return m
}

func (m *invalidUpdateMutation) Debug() UpdateMutation {
	return m
}

func (m *invalidUpdateMutation) Err() error {
	return m.err
}

func (m *invalidUpdateMutation) Execute(ctx context.Context) (int, error) {
	return 0, m.err
}

type invalidDeleteMutation struct {
	err error
}

func newInvalidDeleteMutation(err error) DeleteMutation {
	return &invalidDeleteMutation{err: err}
}

func (m *invalidDeleteMutation) Where(ref FieldRef, value any) DeleteMutation {
	return m
}

func (m *invalidDeleteMutation) Debug() DeleteMutation {
	return m
}

func (m *invalidDeleteMutation) Err() error {
	return m.err
}

func (m *invalidDeleteMutation) Execute(ctx context.Context) (int, error) {
	return 0, m.err
}
