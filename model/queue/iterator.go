package queue

// Iterator walks an AtomQueue in both directions and can edit it in place.
// The cursor sits between atoms; Remove and Set act on the atom returned by
// the last Next or Previous call.
type Iterator[T Atom] struct {
	queue  *AtomQueue[T]
	cursor int
	last   int
}

// HasNext returns true if Next would return an atom
func (it *Iterator[T]) HasNext() bool {
	return it.cursor < it.queue.Len()
}

// HasPrevious returns true if Previous would return an atom
func (it *Iterator[T]) HasPrevious() bool {
	return it.cursor > 0
}

// NextIndex returns the index of the atom a subsequent Next would return
func (it *Iterator[T]) NextIndex() int {
	return it.cursor
}

// PreviousIndex returns the index of the atom a subsequent Previous would return
func (it *Iterator[T]) PreviousIndex() int {
	return it.cursor - 1
}

// Next moves the cursor forward and returns the passed atom
func (it *Iterator[T]) Next() (T, error) {
	ret, err := it.queue.View(it.cursor)
	if err != nil {
		return ret, err
	}
	it.last = it.cursor
	it.cursor++
	return ret, nil
}

// Previous moves the cursor backward and returns the passed atom
func (it *Iterator[T]) Previous() (T, error) {
	ret, err := it.queue.View(it.cursor - 1)
	if err != nil {
		return ret, err
	}
	it.cursor--
	it.last = it.cursor
	return ret, nil
}

// Remove deletes the atom returned by the last move
func (it *Iterator[T]) Remove() error {
	if it.last < 0 {
		return ErrIllegalState
	}
	if _, err := it.queue.RemoveAt(it.last); err != nil {
		return err
	}
	if it.last < it.cursor {
		it.cursor--
	}
	it.last = -1
	return nil
}

// Set replaces the atom returned by the last move
func (it *Iterator[T]) Set(atom T) error {
	if it.last < 0 {
		return ErrIllegalState
	}
	if isNil(atom) {
		return ErrNilAtom
	}
	if index := it.queue.Index(atom.GetID()); index != -1 && index != it.last {
		return ErrDuplicateID
	}
	it.queue.items[it.last] = atom
	it.queue.recalculate()
	return nil
}

// Add inserts an atom at the cursor; a following Next is unaffected
func (it *Iterator[T]) Add(atom T) error {
	if err := it.queue.Insert(it.cursor, atom); err != nil {
		return err
	}
	it.cursor++
	it.last = -1
	return nil
}
