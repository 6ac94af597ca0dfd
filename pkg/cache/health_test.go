package cache

import "time"

func (s *EngineSuite) TestHealth() {
	c := s.newCache(WithName[any]("sessions"), WithMaxSize[any](2))

	status := c.Health()
	s.True(status.IsHealthy())
	s.Equal("sessions", status.Component)
	s.Require().NotNil(status.Metrics)
	s.Equal(2, status.Metrics.Capacity)

	s.put(c, "a", 1, WithDuration(time.Minute))
	s.put(c, "b", 2, WithDuration(time.Minute))
	ok, err := c.Put("c", 3)
	s.Require().NoError(err)
	s.False(ok)

	status = c.Health()
	s.True(status.IsDegraded())
	s.Equal(2, status.Metrics.Size)
	s.Equal(int64(1), status.Metrics.Rejections)

	s.Require().NoError(c.Close())
	s.True(c.Health().IsUnhealthy())
}

func (s *EngineSuite) TestHealthFullButEvicting() {
	c := s.newCache(WithMaxSize[any](1), WithCanPutWhenFull[any](true))
	s.put(c, "a", 1, WithDuration(time.Minute))

	status := c.Health()
	s.True(status.IsHealthy())
	s.Equal("cache", status.Component)
}
