package session_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mindstone/internal/adapt"
	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/metrics"
	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/session"
	"github.com/san-kum/mindstone/internal/state"
)

var _ = Describe("Session", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		DeferCleanup(cancel)
	})

	Context("with a passthrough model", func() {
		It("emits one output per snapshot and completes cleanly", func() {
			out := &sink{}
			l, err := loop.New(passthrough(), &scripted{snaps: xs(1, 2, 3)}, out, nil, cfg())
			Expect(err).NotTo(HaveOccurred())

			s := session.New(l, session.WithUntil(session.MaxTicks(3)))
			res := s.Run(ctx)

			Expect(res.Reason).To(Equal(session.ReasonCompleted))
			Expect(res.SessionID).To(Equal(s.ID()))
			Expect(res.Ticks).To(BeEquivalentTo(3))
			Expect(out.values()).To(Equal([]float64{1, 2, 3}))
			Expect(res.Metrics).To(HaveKeyWithValue(metrics.FaultCount, 0.0))
			Expect(res.Metrics).To(HaveKeyWithValue(metrics.AdaptationEventCount, 0.0))
		})
	})

	Context("when the sensor times out mid-run", func() {
		It("ends with a terminal snapshot timeout after the last good output", func() {
			snaps := append(xs(1, 2), state.Snapshot{})
			snaps = append(snaps, xs(4, 5)...)
			out := &sink{}
			l, err := loop.New(passthrough(), &scripted{snaps: snaps}, out, nil, cfg())
			Expect(err).NotTo(HaveOccurred())

			res := session.New(l, session.WithUntil(session.MaxTicks(5))).Run(ctx)

			Expect(res.Reason).To(Equal(session.ReasonFaulted))
			Expect(res.Fault).NotTo(BeNil())
			Expect(res.Fault.Kind).To(Equal(loop.FaultSnapshotTimeout))
			Expect(errors.Is(res.Fault, loop.ErrSnapshotTimeout)).To(BeTrue())
			Expect(res.Ticks).To(BeEquivalentTo(2))
			Expect(out.values()).To(Equal([]float64{1, 2}))
		})
	})

	Context("with an adaptive gain pushed past its bound", func() {
		It("clamps the gain and records exactly one divergence", func() {
			m, err := model.NewAdaptive(
				model.NewGain("x", "u"),
				model.Params{model.ParamGain: 0.8},
				model.Bounds{model.ParamGain: {Min: 0, Max: 1}},
				adapt.NewConstant(model.Delta{model.ParamGain: 0.5}),
			)
			Expect(err).NotTo(HaveOccurred())
			l, err := loop.New(m, &scripted{snaps: xs(1)}, nil, nil, cfg())
			Expect(err).NotTo(HaveOccurred())

			res := session.New(l, session.WithUntil(session.MaxTicks(1))).Run(ctx)

			Expect(res.Reason).To(Equal(session.ReasonCompleted))
			Expect(m.Params()[model.ParamGain]).To(Equal(1.0))
			Expect(res.Metrics).To(HaveKeyWithValue(metrics.DivergenceCount, 1.0))
			Expect(res.Metrics).To(HaveKeyWithValue(metrics.AdaptationEventCount, 1.0))
		})
	})

	Context("observers", func() {
		It("receive every report in tick order", func() {
			var ticks []uint64
			obs := session.ObserverFunc(func(r loop.TickReport) { ticks = append(ticks, r.Tick) })
			l, err := loop.New(passthrough(), &counting{}, nil, nil, cfg())
			Expect(err).NotTo(HaveOccurred())

			res := session.New(l,
				session.WithObservers(obs),
				session.WithUntil(session.MaxTicks(10)),
			).Run(ctx)

			Expect(res.Reason).To(Equal(session.ReasonCompleted))
			Expect(ticks).To(Equal([]uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
			Expect(res.Metrics).To(HaveKeyWithValue(session.DroppedReports, 0.0))
		})
	})

	Context("lifecycle", func() {
		It("reports stopped without ticks when stopped before start", func() {
			l, err := loop.New(passthrough(), &counting{}, nil, nil, cfg())
			Expect(err).NotTo(HaveOccurred())
			s := session.New(l)

			s.Stop()
			s.Stop()
			res := s.Run(ctx)

			Expect(res.Reason).To(Equal(session.ReasonStopped))
			Expect(res.Ticks).To(BeZero())
			Expect(s.State()).To(Equal(loop.Stopped))
		})

		It("pauses, resumes and stops at tick boundaries", func() {
			c := cfg()
			c.TickInterval = time.Millisecond
			l, err := loop.New(passthrough(), &counting{}, nil, nil, c)
			Expect(err).NotTo(HaveOccurred())
			s := session.New(l)
			Expect(s.Start(ctx)).To(Succeed())
			Expect(s.Start(ctx)).To(MatchError(session.ErrAlreadyStarted))

			ticks := func() float64 { return s.MetricsSnapshot()[metrics.TickCount] }
			Eventually(ticks).Should(BeNumerically(">", 2))

			Expect(s.Pause()).To(Succeed())
			Eventually(s.State).Should(Equal(loop.Paused))
			held := ticks()
			Consistently(ticks, 30*time.Millisecond, 5*time.Millisecond).Should(Equal(held))

			Expect(s.Resume()).To(Succeed())
			Eventually(ticks).Should(BeNumerically(">", held))

			s.Stop()
			res := s.Wait()
			Expect(res.Reason).To(Equal(session.ReasonStopped))
			Expect(s.State()).To(Equal(loop.Stopped))
		})

		It("reports cancellation", func() {
			c := cfg()
			c.TickInterval = time.Millisecond
			l, err := loop.New(passthrough(), &counting{}, nil, nil, c)
			Expect(err).NotTo(HaveOccurred())

			short, stop := context.WithTimeout(ctx, 20*time.Millisecond)
			defer stop()
			res := session.New(l).Run(short)

			Expect(res.Reason).To(Equal(session.ReasonCanceled))
			Expect(res.Err).To(MatchError(context.DeadlineExceeded))
		})
	})
})
