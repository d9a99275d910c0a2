package chipmunk

import (
	"io"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/physkit/internal/engine"
)

var _ = Describe("engine lifecycle", func() {
	var (
		world *testWorld
		e     *Engine
	)

	BeforeEach(func() {
		world = newTestWorld()
		e = New(world)
		e.SetLogger(log.New(io.Discard, "", 0))
		Expect(e.Load(engine.DefaultConfig())).To(Succeed())
		Expect(e.Init()).To(Succeed())
	})

	AfterEach(func() {
		e.Fini()
	})

	It("keeps step time and update rate reciprocal", func() {
		Expect(e.SetStepTime(0.001)).To(Succeed())
		Expect(e.GetUpdateRate()).To(BeNumerically("~", 1000, 1e-9))

		Expect(e.SetStepTime(0.01)).To(Succeed())
		Expect(e.GetUpdateRate()).To(BeNumerically("~", 100, 1e-9))
		Expect(e.GetStepTime()).To(BeNumerically("~", 0.01, 1e-12))
	})

	It("reports registered contact pairs from either side", func() {
		a, err := e.CreateLink(nil)
		Expect(err).NotTo(HaveOccurred())
		b, err := e.CreateLink(nil)
		Expect(err).NotTo(HaveOccurred())

		e.AddLinkPair(a, b)
		Expect(e.AreTouching(a, b)).To(BeTrue())
		Expect(e.AreTouching(b, a)).To(BeTrue())

		e.UpdateCollision()
		Expect(e.AreTouching(a, b)).To(BeFalse(), "separated links stay registered only for one tick")
	})

	Describe("hinge joints", func() {
		var (
			parent, child engine.Link
			j             engine.Joint
		)

		BeforeEach(func() {
			var err error
			parent, err = e.CreateLink(nil)
			Expect(err).NotTo(HaveOccurred())
			child, err = e.CreateLink(nil)
			Expect(err).NotTo(HaveOccurred())
			world.add("base", parent)
			world.add("arm", child)

			j, err = e.CreateJoint("hinge")
			Expect(err).NotTo(HaveOccurred())
			cfg := &engine.JointConfig{Type: "hinge", Parent: "base", Child: "arm"}
			Expect(j.Load(cfg)).To(Succeed())
		})

		It("accepts solver tuning after load", func() {
			j.SetERP(0.2)
			j.SetCFM(0.0005)
			Expect(j.GetERP()).To(BeNumerically("~", 0.2, 1e-12))
			Expect(j.GetCFM()).To(BeNumerically("~", 0.0005, 1e-12))
		})

		It("exposes both endpoints until detached", func() {
			got, err := j.GetJointLink(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeIdenticalTo(parent))
			got, err = j.GetJointLink(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeIdenticalTo(child))
			Expect(j.AreConnected(parent, child)).To(BeTrue())
			Expect(j.AreConnected(child, parent)).To(BeTrue())

			j.Detach()
			_, err = j.GetJointLink(0)
			Expect(err).To(MatchError(engine.ErrNotAttached))
			_, err = j.GetJointLink(1)
			Expect(err).To(MatchError(engine.ErrNotAttached))
			Expect(j.AreConnected(parent, child)).To(BeFalse())
		})

		It("rejects a child link the world does not know", func() {
			j2, err := e.CreateJoint("hinge")
			Expect(err).NotTo(HaveOccurred())
			cfg := &engine.JointConfig{Type: "hinge", Parent: "base", Child: "ghost"}
			Expect(j2.Load(cfg)).To(MatchError(engine.ErrUnknownLink))
		})
	})

	It("settles a dropped box onto the ground", func() {
		ground, err := e.CreateLink(nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = e.CreateCollision("plane", ground)
		Expect(err).NotTo(HaveOccurred())
		ground.(engine.StaticBody).SetStatic(true)

		box, err := e.CreateLink(nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = e.CreateCollision("box", box)
		Expect(err).NotTo(HaveOccurred())
		box.(engine.Positioned).SetPosition(engine.Vec3{Y: 3})

		Expect(e.SetStepTime(0.005)).To(Succeed())
		Eventually(func() bool {
			e.UpdateCollision()
			e.UpdatePhysics()
			return e.AreTouching(box, ground)
		}, "2s", "1ms").Should(BeTrue(), "box never landed on the ground")

		Expect(box.(engine.Positioned).Position().Y).To(BeNumerically("<", 3))
	})
})
