package animation

import "github.com/charmbracelet/harmonica"

// Transform is the combined visual adjustment renderers apply to a frame.
type Transform struct {
	Scale      float64 `json:"scale"`
	Opacity    float64 `json:"opacity"`
	Rotation   float64 `json:"rotation"`
	TranslateY float64 `json:"translateY"`
}

// Identity leaves a frame untouched.
func Identity() Transform {
	return Transform{Scale: 1, Opacity: 1}
}

// Apply writes an active state's value into the property it drives.
// Inactive states leave t unchanged.
func (t *Transform) Apply(st State) {
	if !st.Active {
		return
	}
	switch st.Property {
	case PropertyScale:
		t.Scale = st.Value
	case PropertyOpacity:
		t.Opacity = clamp01(st.Value)
	case PropertyRotation:
		t.Rotation = st.Value
	case PropertyTranslation:
		t.TranslateY = st.Value
	}
}

// With returns a copy of t with st applied.
func (t Transform) With(st State) Transform {
	t.Apply(st)
	return t
}

// Smoother eases a Transform toward its target with damped
// springs, so a one-shot retiring does not snap back in a single frame.
// Rotation is passed through unchanged.
type Smoother struct {
	spring  harmonica.Spring
	current Transform
	vel     Transform
}

// NewSmoother builds a smoother stepping at fps frames per second.
func NewSmoother(fps int) *Smoother {
	if fps <= 0 {
		fps = 60
	}
	return &Smoother{
		spring:  harmonica.NewSpring(harmonica.FPS(fps), 12.0, 0.6),
		current: Identity(),
	}
}

// Step advances one frame toward target and returns the eased transform.
func (s *Smoother) Step(target Transform) Transform {
	s.current.Scale, s.vel.Scale = s.spring.Update(s.current.Scale, s.vel.Scale, target.Scale)
	s.current.Opacity, s.vel.Opacity = s.spring.Update(s.current.Opacity, s.vel.Opacity, target.Opacity)
	s.current.TranslateY, s.vel.TranslateY = s.spring.Update(s.current.TranslateY, s.vel.TranslateY, target.TranslateY)
	s.current.Rotation = target.Rotation
	s.current.Opacity = clamp01(s.current.Opacity)
	return s.current
}

// Current returns the last eased transform.
func (s *Smoother) Current() Transform { return s.current }

// Reset snaps back to the identity transform.
func (s *Smoother) Reset() {
	s.current = Identity()
	s.vel = Transform{}
}
