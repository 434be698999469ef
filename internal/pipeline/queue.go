package pipeline

import "sync"

// jobQueue is a mutex-guarded FIFO shared by the worker pool. Pop is atomic:
// no two workers can dequeue the same job.
type jobQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func newJobQueue(jobs []Job) *jobQueue {
	q := &jobQueue{jobs: make([]Job, len(jobs))}
	copy(q.jobs, jobs)
	return q
}

func (q *jobQueue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
