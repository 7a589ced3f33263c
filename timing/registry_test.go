package timing

import (
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var registry *Registry

	BeforeEach(func() {
		registry = NewRegistry()
	})

	It("should register and look up routines", func() {
		called := false
		err := registry.Register("Beep",
			func(*EventRecord) Schedulable { called = true; return nil },
			nil)
		Expect(err).NotTo(HaveOccurred())

		routines, err := registry.Lookup("Beep")
		Expect(err).NotTo(HaveOccurred())
		Expect(routines.Deferred).To(BeNil())

		routines.Immediate(nil)
		Expect(called).To(BeTrue())
	})

	It("should reject a duplicated name", func() {
		Expect(registry.Register("Beep", nil, nil)).To(Succeed())

		err := registry.Register("Beep", nil, nil)

		Expect(err).To(MatchError(ErrDuplicateRoutine))
	})

	It("should fail to look up an unknown name", func() {
		_, err := registry.Lookup("Missing")

		Expect(err).To(MatchError(ErrLookup))
	})

	It("should bind every event or none", func() {
		deferredRan := false
		Expect(registry.Register("A", nil,
			func(*EventRecord) { deferredRan = true })).To(Succeed())

		a := NewEvent("A", 1)
		b := NewEvent("B", 1).Then(a)

		err := registry.Bind(a, b)
		Expect(err).To(MatchError(ErrLookup))
		Expect(a.deferred).To(BeNil())
		Expect(b.immediate).NotTo(BeNil())

		Expect(registry.Bind(a)).To(Succeed())
		a.deferred(nil)
		Expect(deferredRan).To(BeTrue())
	})

	It("should list names in order", func() {
		Expect(registry.Register("Stimulus", nil, nil)).To(Succeed())
		Expect(registry.Register("Fixation", nil, nil)).To(Succeed())

		Expect(registry.Names()).To(Equal([]string{"Fixation", "Stimulus"}))
	})
})

var _ = Describe("Jitter", func() {
	It("should stay within bounds", func() {
		j := NewJitter(rand.New(rand.NewSource(1)), 10, 20)

		for i := 0; i < 200; i++ {
			Expect(j.Next()).To(And(
				BeNumerically(">=", 10),
				BeNumerically("<=", 20),
			))
		}
	})

	It("should repeat the same delays for the same seed", func() {
		a := NewJitter(rand.New(rand.NewSource(7)), 0, 1000)
		b := NewJitter(rand.New(rand.NewSource(7)), 0, 1000)

		for i := 0; i < 20; i++ {
			Expect(a.Next()).To(Equal(b.Next()))
		}
	})

	It("should set the delay of an event", func() {
		j := NewJitter(rand.New(rand.NewSource(1)), 3, 3)
		evt := NewEvent("Foreperiod", 100)

		Expect(j.Apply(evt)).To(Equal(VTimeInTick(3)))
		Expect(evt.Delay()).To(Equal(VTimeInTick(3)))
	})

	It("should panic if the bounds are swapped", func() {
		Expect(func() {
			NewJitter(rand.New(rand.NewSource(1)), 5, 4)
		}).To(Panic())
	})
})

var _ = Describe("QueueDispatcher", func() {
	It("should run tasks in order", func() {
		d := NewQueueDispatcher()
		var order []int

		for i := 0; i < 3; i++ {
			d.Dispatch(func() { order = append(order, i) })
		}

		Expect(d.Len()).To(Equal(3))
		Expect(d.Drain()).To(Equal(3))
		Expect(order).To(Equal([]int{0, 1, 2}))
		Expect(d.Len()).To(BeZero())
	})

	It("should run tasks dispatched by a task", func() {
		d := NewQueueDispatcher()
		ran := 0
		d.Dispatch(func() {
			ran++
			d.Dispatch(func() { ran++ })
		})

		Expect(d.Drain()).To(Equal(2))
		Expect(ran).To(Equal(2))
	})

	It("should keep going after a task panics", func() {
		var recovered []any
		d := NewQueueDispatcher().
			WithPanicHandler(func(r any) { recovered = append(recovered, r) })
		ran := false

		d.Dispatch(func() { panic("oops") })
		d.Dispatch(func() { ran = true })
		d.Drain()

		Expect(recovered).To(Equal([]any{"oops"}))
		Expect(ran).To(BeTrue())
	})

	It("should run queued tasks until the context ends", func(ctx SpecContext) {
		d := NewQueueDispatcher()
		done := make(chan struct{})

		go func() {
			defer GinkgoRecover()
			_ = d.Run(ctx)
		}()

		d.Dispatch(func() { close(done) })

		Eventually(done).Should(BeClosed())
	}, SpecTimeout(5*time.Second))
})
